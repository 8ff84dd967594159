package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sbomarketplace/log-nexus-sub000/internal/aiorganize"
	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
	"github.com/sbomarketplace/log-nexus-sub000/internal/notes"
	"github.com/sbomarketplace/log-nexus-sub000/internal/store"
	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

func (a *app) addCmd() *cobra.Command {
	var (
		inc       incident.Incident
		date      string
		clock     string
		notesFile string
		fill      bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log a new incident",
		Long: `Logs a new incident. At least one of --what, --notes or --notes-file is
required. With --prefill the empty fields are filled from the notes right
after saving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if notesFile != "" {
				text, err := readText(cmd, []string{notesFile})
				if err != nil {
					return err
				}
				inc.Notes = text
			}
			inc.What = strings.TrimSpace(inc.What)
			inc.Notes = strings.TrimSpace(inc.Notes)
			if inc.What == "" && inc.Notes == "" {
				return fmt.Errorf("one of --what, --notes or --notes-file is required")
			}
			if date != "" {
				if inc.DatePart = notes.ExtractDate(date); inc.DatePart == "" {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD or M/D/YYYY", date)
				}
			}
			if clock != "" {
				if inc.TimePart = notes.ExtractTime(clock); inc.TimePart == "" {
					return fmt.Errorf("invalid --time %q, expected HH:mm or h:mm am/pm", clock)
				}
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			if err := s.Save(ctx, &inc); err != nil {
				return fmt.Errorf("saving incident: %w", err)
			}
			saved := &inc

			if fill {
				engine, err := a.engine()
				if err != nil {
					return err
				}
				saved, _, err = s.Update(ctx, inc.ID, store.EventPrefill, func(current incident.Incident) (incident.Patch, error) {
					return engine.Prefill(current), nil
				})
				if err != nil {
					return fmt.Errorf("prefilling incident: %w", err)
				}
			}

			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), saved)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged incident %s\n", saved.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&inc.What, "what", "", "What happened")
	f.StringVar(&inc.Notes, "notes", "", "Free-form notes")
	f.StringVar(&notesFile, "notes-file", "", "Read notes from a file (- for stdin)")
	f.StringVar(&inc.Who, "who", "", "Comma-separated people involved")
	f.StringVar(&inc.Where, "where", "", "Location")
	f.StringVar(&inc.Witnesses, "witnesses", "", "Comma-separated witnesses")
	f.StringVar(&inc.CategoryOrIssue, "category", "", "Category or issue")
	f.StringVar(&inc.CaseNumber, "case", "", "Case, ticket or claim number")
	f.StringVar(&date, "date", "", "Incident date")
	f.StringVar(&clock, "time", "", "Incident time")
	f.BoolVar(&fill, "prefill", false, "Fill empty fields from the notes after saving")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var opts store.ListOpts
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logged incidents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			incidents, err := s.List(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("listing incidents: %w", err)
			}
			if a.jsonOut {
				if incidents == nil {
					incidents = []*incident.Incident{}
				}
				return printJSON(cmd.OutOrStdout(), incidents)
			}
			if len(incidents) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No incidents logged.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tCATEGORY\tWHAT")
			for _, inc := range incidents {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					inc.ID, orDash(when(*inc)), orDash(inc.CategoryOrIssue),
					orDash(textutil.Truncate(firstLine(textutil.FirstNonEmpty(inc.What, inc.Notes)), 60)))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Results to skip")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Only this category")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one incident",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			inc, err := s.GetByID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("getting incident: %w", err)
			}
			if inc == nil {
				return fmt.Errorf("incident %s not found", args[0])
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), inc)
			}
			printIncident(cmd.OutOrStdout(), inc)
			return nil
		},
	}
}

// mergeOutput is the JSON printed by prefill and organize.
type mergeOutput struct {
	Incident *incident.Incident `json:"incident"`
	Patch    incident.Patch     `json:"patch"`
	Fields   []string           `json:"fields"`
	DryRun   bool               `json:"dryRun,omitempty"`
	Source   aiorganize.Source  `json:"source,omitempty"`
}

func (a *app) printMerge(w io.Writer, out mergeOutput) error {
	if out.Fields == nil {
		out.Fields = []string{}
	}
	if a.jsonOut {
		return printJSON(w, out)
	}
	if len(out.Fields) == 0 {
		fmt.Fprintln(w, "Nothing to fill.")
		return nil
	}
	verb := "Filled"
	if out.DryRun {
		verb = "Would fill"
	}
	fmt.Fprintf(w, "%s: %s\n", verb, strings.Join(out.Fields, ", "))
	if out.Source != "" {
		fmt.Fprintf(w, "Source: %s\n", out.Source)
	}
	return nil
}

func (a *app) prefillCmd() *cobra.Command {
	var (
		dryRun   bool
		fromFile string
	)
	cmd := &cobra.Command{
		Use:   "prefill <id>",
		Short: "Fill an incident's empty fields from its notes",
		Long: `Fills the empty fields of an incident from its own notes, or from --from
when given. Fields that already have a value are never changed. Running it
twice changes nothing the second time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			engine, err := a.engine()
			if err != nil {
				return err
			}
			var text string
			if fromFile != "" {
				if text, err = readText(cmd, []string{fromFile}); err != nil {
					return err
				}
			}
			compute := func(current incident.Incident) (incident.Patch, error) {
				if !textutil.IsBlank(text) {
					return engine.PrefillFromText(current, text), nil
				}
				return engine.Prefill(current), nil
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			if dryRun {
				inc, err := s.GetByID(ctx, id)
				if err != nil {
					return fmt.Errorf("getting incident: %w", err)
				}
				if inc == nil {
					return fmt.Errorf("incident %s not found", id)
				}
				p, _ := compute(*inc)
				return a.printMerge(cmd.OutOrStdout(), mergeOutput{Incident: inc, Patch: p, Fields: p.Fields(), DryRun: true})
			}

			inc, p, err := s.Update(ctx, id, store.EventPrefill, compute)
			if err != nil {
				return fmt.Errorf("prefilling incident: %w", err)
			}
			return a.printMerge(cmd.OutOrStdout(), mergeOutput{Incident: inc, Patch: p, Fields: p.Fields()})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be filled without saving")
	cmd.Flags().StringVar(&fromFile, "from", "", "Parse this file (- for stdin) instead of the incident's notes")
	return cmd
}

func (a *app) organizeCmd() *cobra.Command {
	var useAI bool
	cmd := &cobra.Command{
		Use:   "organize <id>",
		Short: "Prefill an incident and tidy its voice",
		Long: `Runs prefill, rewrites appended requests in the second person and gives an
empty description a neutral lead sentence. With --ai the configured LLM
organizes the notes; any provider failure falls back to the local parser.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			engine, err := a.engine()
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			snapshot, err := s.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("getting incident: %w", err)
			}
			if snapshot == nil {
				return fmt.Errorf("incident %s not found", id)
			}

			organizer := aiorganize.New(nil)
			if useAI {
				organizer = a.organizer()
			}
			plan, err := organizer.PlanFor(ctx, *snapshot, useAI)
			if err != nil {
				return fmt.Errorf("organizing incident: %w", err)
			}

			inc, p, err := s.Update(ctx, id, store.EventOrganize, func(current incident.Incident) (incident.Patch, error) {
				return plan.Patch(engine, current), nil
			})
			if err != nil {
				return fmt.Errorf("organizing incident: %w", err)
			}
			return a.printMerge(cmd.OutOrStdout(), mergeOutput{Incident: inc, Patch: p, Fields: p.Fields(), Source: plan.Source})
		},
	}
	cmd.Flags().BoolVar(&useAI, "ai", false, "Use the configured LLM")
	return cmd
}

func (a *app) eventsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events <id>",
		Short: "Show the change history of an incident",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			events, err := s.ListEvents(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("listing events: %w", err)
			}
			if a.jsonOut {
				if events == nil {
					events = []*store.Event{}
				}
				return printJSON(cmd.OutOrStdout(), events)
			}
			if len(events) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No events for %s.\n", args[0])
				return nil
			}
			for _, e := range events {
				p, err := e.DecodePatch()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  %s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.EventType, orDash(strings.Join(p.Fields(), ", ")))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum events")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an incident (its history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted incident %s\n", args[0])
			return nil
		},
	}
}

// when renders the incident's date and time in whichever form it has.
func when(inc incident.Incident) string {
	if inc.DateTime != "" {
		return inc.DateTime
	}
	return strings.TrimSpace(inc.DatePart + " " + inc.TimePart)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func printIncident(w io.Writer, inc *incident.Incident) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct{ label, value string }{
		{"ID", inc.ID},
		{"When", when(*inc)},
		{"Who", inc.Who},
		{"What", inc.What},
		{"Where", inc.Where},
		{"Witnesses", inc.Witnesses},
		{"Category", inc.CategoryOrIssue},
		{"Case number", inc.CaseNumber},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", r.label, orDash(r.value))
	}
	tw.Flush()
	if strings.TrimSpace(inc.Notes) != "" {
		fmt.Fprintf(w, "\nNotes:\n%s\n", inc.Notes)
	}
}
