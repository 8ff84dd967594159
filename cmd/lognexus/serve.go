package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sbomarketplace/log-nexus-sub000/internal/mcp"
)

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		Long:  "Prints every setting with its source (default, config, env or cli). API keys are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			masked := a.cfg.Masked()
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), masked)
			}
			out, err := yaml.Marshal(masked)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func (a *app) mcpCmd() *cobra.Command {
	var useAI bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		Long: `Serves the incident tools over the Model Context Protocol on stdin/stdout,
for desktop MCP clients. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			cfg := mcp.ServerConfig{
				Store:   s,
				Engine:  engine,
				Version: version,
				Logger:  a.logger,
			}
			if useAI {
				cfg.Organizer = a.organizer()
			}

			a.logger.Debug("MCP server starting", zap.String("db", a.cfg.DBPath.Value), zap.Bool("ai", useAI))
			return mcp.ServeStdio(mcp.NewServer(cfg))
		},
	}
	cmd.Flags().BoolVar(&useAI, "ai", false, "Allow incident_organize to use the configured LLM")
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "lognexus %s\n", version)
			return nil
		},
	}
}
