// Command lognexus parses workplace incident notes and keeps a local log of
// incidents whose empty fields it can fill from those notes.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sbomarketplace/log-nexus-sub000/internal/aiorganize"
	"github.com/sbomarketplace/log-nexus-sub000/internal/config"
	"github.com/sbomarketplace/log-nexus-sub000/internal/llm"
	"github.com/sbomarketplace/log-nexus-sub000/internal/prefill"
	"github.com/sbomarketplace/log-nexus-sub000/internal/store"
)

const version = "0.3.0"

// defaultLLM is used by --ai when neither config nor flags name a model.
const defaultLLM = "google/gemini-2.5-flash"

// app holds global flag values and the state built from them before each
// command runs.
type app struct {
	dbPath     string
	configPath string
	timezone   string
	llmFlag    string
	verbose    bool
	jsonOut    bool

	logger *zap.Logger
	cfg    config.ResolvedConfig
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "lognexus",
		Short: "Parse workplace incident notes and keep an incident log",
		Long: `lognexus turns free-form notes about workplace incidents into structured
fields (date, time, location, people, witnesses, quotes, requests, category
and case number) and fills the empty fields of logged incidents from them.

Existing values are never overwritten. Everything runs offline unless --ai is
passed to organize.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.dbPath, "db", "", "Database path (default ~/.lognexus/lognexus.db)")
	flags.StringVar(&a.configPath, "config", "", "Config file (default ~/.lognexus/config.yaml)")
	flags.StringVar(&a.timezone, "timezone", "", "Zone local dates and times are read in (default Local)")
	flags.StringVar(&a.llmFlag, "llm", "", "LLM for --ai as provider/model, e.g. openrouter/openai/gpt-4o-mini")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&a.jsonOut, "json", false, "Print JSON instead of text")

	rootCmd.AddCommand(
		a.parseCmd(),
		a.scanCmd(),
		a.caseCmd(),
		a.workerCmd(),
		a.watchCmd(),
		a.addCmd(),
		a.listCmd(),
		a.showCmd(),
		a.prefillCmd(),
		a.organizeCmd(),
		a.eventsCmd(),
		a.deleteCmd(),
		a.configCmd(),
		a.mcpCmd(),
		a.versionCmd(),
	)
	return rootCmd
}

// init builds the logger and resolves configuration.
func (a *app) init() error {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath:  a.configPath,
		CLILLM:      a.llmFlag,
		CLIDBPath:   a.dbPath,
		CLITimezone: a.timezone,
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	a.logger.Debug("config resolved",
		zap.String("db", cfg.DBPath.Value),
		zap.String("db_source", string(cfg.DBPath.Source)),
		zap.String("timezone", cfg.Timezone.Value))
	return nil
}

func (a *app) openStore() (store.Store, error) {
	s, err := store.NewStore(store.StoreConfig{DBPath: a.cfg.DBPath.Value, Logger: a.logger})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

func (a *app) engine() (*prefill.Engine, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	maxExisting, maxBlock := a.cfg.NotesLimits()
	return prefill.NewEngine(
		prefill.WithLocation(loc),
		prefill.WithNotesLimits(maxExisting, maxBlock),
	), nil
}

// organizer returns an Organizer backed by the configured LLM. A missing
// key or unknown provider is logged and leaves only the local parser.
func (a *app) organizer() *aiorganize.Organizer {
	model := a.cfg.EffectiveLLMModel(defaultLLM)
	llmCfg, err := llm.ParseLLMFlag(model.Value)
	if err != nil {
		a.logger.Warn("invalid LLM setting, using local parser", zap.String("llm", model.Value), zap.Error(err))
		return aiorganize.New(nil, aiorganize.WithLogger(a.logger))
	}
	llmCfg.APIKey = a.cfg.APIKeyForProvider(model.Value).Value

	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		a.logger.Warn("LLM unavailable, using local parser", zap.String("llm", model.Value), zap.Error(err))
		return aiorganize.New(nil, aiorganize.WithLogger(a.logger))
	}
	provider = llm.WithRateLimit(provider, a.cfg.LLMRatePerMinute())
	return aiorganize.New(provider, aiorganize.WithLogger(a.logger))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readText reads the named file, or stdin for "-" or no argument.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(b), nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
