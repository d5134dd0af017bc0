// ASR-GoT: graph-of-thoughts reasoning MCP server
//
// Builds a confidence-weighted knowledge graph for a research question
// through an eight-stage pipeline and exposes it to any MCP host.
//
// Usage:
//
//	asrgot serve                 # Start MCP server (stdio transport)
//	asrgot query "question"      # Run one query and print the result
//	asrgot history               # List recorded runs
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/asrgot/internal/config"
	"github.com/HendryAvila/asrgot/internal/logging"
	asrserver "github.com/HendryAvila/asrgot/internal/server"
	"github.com/HendryAvila/asrgot/internal/templates"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "asrgot",
		Short: "ASR-GoT - graph-of-thoughts reasoning over research questions",
		Long: `ASR-GoT builds a knowledge graph for a research question in eight stages
(initialization, decomposition, hypotheses, evidence, pruning and merging,
subgraph extraction, composition, reflection) and reports a four-part
confidence: empirical support, theoretical basis, methodological rigor and
consensus alignment.

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "asrgot": { "command": "asrgot", "args": ["serve"] }
    }
  }`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("asrgot v%s\n", asrserver.Version)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		RunE:  runServe,
	}
	serveCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	rootCmd.AddCommand(serveCmd)

	queryCmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Run one query and print the report",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().String("params", "", "Pipeline parameters as a JSON object")
	queryCmd.Flags().String("context", "", "Query context as a JSON object")
	queryCmd.Flags().Bool("graph", false, "Include the full graph state")
	queryCmd.Flags().Bool("markdown", false, "Print the report as markdown instead of JSON")
	rootCmd.AddCommand(queryCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE:  runHistory,
	}
	historyCmd.Flags().Int("limit", 10, "Maximum runs to list")
	rootCmd.AddCommand(historyCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the --config flag, then the environment.
func loadConfig(cmd *cobra.Command) (config.Config, *logging.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.Server.LogMode, cfg.Server.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Metrics.ListenAddr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := asrserver.NewEngine(cfg, log)
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("closing engine", "error", err)
		}
	}()
	eng.Start(ctx)

	s, err := asrserver.New(cfg, eng)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	log.Info("asrgot serving", "version", asrserver.Version, "metrics_addr", cfg.Metrics.ListenAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// stdin closing ends the session with the host
		defer stop()
		err := server.NewStdioServer(s).Listen(gctx, os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return nil
		}
		return err
	})
	if cfg.Metrics.ListenAddr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           metricsMux(eng.Metrics().Handler()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

func metricsMux(h http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	params, err := jsonFlag(cmd, "params")
	if err != nil {
		return err
	}
	qctx, err := jsonFlag(cmd, "context")
	if err != nil {
		return err
	}

	eng := asrserver.NewEngine(cfg, log)
	defer eng.Close()

	res, err := eng.ProcessQuery(cmd.Context(), args[0], qctx, params)
	if err != nil {
		return err
	}
	if md, _ := cmd.Flags().GetBool("markdown"); md {
		r, err := templates.NewRenderer()
		if err != nil {
			return err
		}
		text, err := r.Render(templates.Report, templates.ReportData{
			SessionID:   res.Result.SessionID,
			Query:       args[0],
			Composition: res.Result.Composition,
			Audit:       res.Result.Reflection,
			Confidence:  res.Confidence,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	if withGraph, _ := cmd.Flags().GetBool("graph"); !withGraph {
		res.GraphState = nil
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	eng := asrserver.NewEngine(cfg, log)
	defer eng.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := eng.History(limit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), runs)
}

func jsonFlag(cmd *cobra.Command, name string) (map[string]any, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", name, err)
	}
	return m, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
