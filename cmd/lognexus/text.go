package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
	"github.com/sbomarketplace/log-nexus-sub000/internal/notes"
	"github.com/sbomarketplace/log-nexus-sub000/internal/prefill"
	"github.com/sbomarketplace/log-nexus-sub000/internal/store"
	"github.com/sbomarketplace/log-nexus-sub000/internal/watch"
	"github.com/sbomarketplace/log-nexus-sub000/internal/worker"
)

func (a *app) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file...|-]",
		Short: "Parse notes into structured fields",
		Long: `Parses notes from files or stdin and prints the detected fields as JSON.
Several files are parsed concurrently and printed as one JSON array of
worker responses, in argument order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) <= 1 {
				text, err := readText(cmd, args)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), notes.ParseNotesToStructured(text))
			}

			texts := make([]string, len(args))
			for i, path := range args {
				b, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				texts[i] = string(b)
			}

			pool := worker.New(a.cfg.WorkerCount(), worker.WithLogger(a.logger))
			defer pool.Close()

			responses, err := pool.ParseAll(cmd.Context(), texts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), responses)
		},
	}
}

func (a *app) scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [file|-]",
		Short: "Quickly find just the case number and time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			res := notes.QuickScan(text)
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Case number: %s\nTime:        %s\n", orDash(res.CaseNumber), orDash(res.Time))
			return nil
		},
	}
}

func (a *app) caseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "case [text...]",
		Short: "Extract a case, ticket or claim number",
		Long:  "Extracts a case number from the arguments, or from stdin when none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				var err error
				if text, err = readText(cmd, nil); err != nil {
					return err
				}
			}
			caseNumber := notes.ExtractCaseNumberFlexible(text)
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]string{"caseNumber": caseNumber})
			}
			if caseNumber == "" {
				return fmt.Errorf("no case number found")
			}
			fmt.Fprintln(cmd.OutOrStdout(), caseNumber)
			return nil
		},
	}
}

func (a *app) workerCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve parse requests as newline-delimited JSON on stdin/stdout",
		Long: `Reads one {"text": "..."} request per line from stdin and writes one
{"result": {...}, "ms": 1.2, "success": true} response per line to stdout,
in input order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size <= 0 {
				size = a.cfg.WorkerCount()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool := worker.New(size, worker.WithLogger(a.logger))
			defer pool.Close()

			a.logger.Debug("worker serving", zap.Int("size", size))
			err := pool.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&size, "workers", 0, "Parser goroutines (default from config)")
	return cmd
}

// watchLine is one line of watch output.
type watchLine struct {
	watch.Result
	IncidentID string `json:"incidentId,omitempty"`
}

func (a *app) watchCmd() *cobra.Command {
	var (
		exts         []string
		addIncidents bool
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Parse notes files as they are saved into a directory",
		Long: `Watches a directory and parses every notes file that is created or
written there, printing one JSON line per file. With --add each file is also
logged as a new incident and prefilled from its text. Stops on Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				s      store.Store
				engine *prefill.Engine
			)
			if addIncidents {
				var err error
				if engine, err = a.engine(); err != nil {
					return err
				}
				if s, err = a.openStore(); err != nil {
					return err
				}
				defer s.Close()
			}

			pool := worker.New(a.cfg.WorkerCount(), worker.WithLogger(a.logger))
			defer pool.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			w := watch.New(args[0], pool, watch.WithLogger(a.logger), watch.WithExtensions(exts...))
			err := w.Run(ctx, func(r watch.Result) {
				line := watchLine{Result: r}
				if s != nil && r.Response.Success {
					id, err := logNotes(ctx, s, engine, r.Text)
					if err != nil {
						a.logger.Warn("logging watched notes failed", zap.String("path", r.Path), zap.Error(err))
					}
					line.IncidentID = id
				}
				if err := enc.Encode(line); err != nil {
					a.logger.Warn("writing watch output failed", zap.Error(err))
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&exts, "ext", watch.DefaultExtensions, "File extensions to parse")
	cmd.Flags().BoolVar(&addIncidents, "add", false, "Log each file as a new incident and prefill it")
	return cmd
}

// logNotes saves text as a new incident and fills its empty fields.
func logNotes(ctx context.Context, s store.Store, engine *prefill.Engine, text string) (string, error) {
	inc := incident.Incident{Notes: strings.TrimSpace(text)}
	if err := s.Save(ctx, &inc); err != nil {
		return "", fmt.Errorf("saving incident: %w", err)
	}
	_, _, err := s.Update(ctx, inc.ID, store.EventPrefill, func(current incident.Incident) (incident.Patch, error) {
		return engine.Prefill(current), nil
	})
	if err != nil {
		return inc.ID, fmt.Errorf("prefilling incident: %w", err)
	}
	return inc.ID, nil
}
