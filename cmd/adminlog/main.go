// Package main is the adminlog command: the HTTP API plus one-shot history and version lookups.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/opsorch/adminlog/api"
	"github.com/opsorch/adminlog/config"
	"github.com/opsorch/adminlog/log"
	_ "github.com/opsorch/adminlog/log/gcplog"
	"github.com/opsorch/adminlog/logger"
	"github.com/opsorch/adminlog/logquery"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:          "adminlog",
		Short:        "adminlog pages App Engine logs backward in time",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	load := func() (config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		logger.Init(cfg.Log)
		return cfg, nil
	}

	rootCmd.AddCommand(newServeCmd(load), newHistoryCmd(load), newVersionsCmd(load))
	return rootCmd
}

type loadFunc func() (config.Config, error)

func newServeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			srv, err := api.NewServer(cfg)
			if err != nil {
				return fmt.Errorf("failed to init server: %w", err)
			}
			return srv.ListenAndServe(cfg.Addr)
		},
	}
}

// historyOptions are the history command's flags.
type historyOptions struct {
	versions   []string
	endMillis  int64
	window     time.Duration
	maxPages   int
	minEntries int
	output     string
}

func newHistoryCmd(load loadFunc) *cobra.Command {
	var opts historyOptions
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Walk log windows backward and print the non-empty pages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runHistory(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&opts.versions, "versions", nil, "versions to query; empty asks the version provider")
	f.Int64Var(&opts.endMillis, "end", 0, "exclusive end of the first window in epoch millis; 0 means now")
	f.DurationVar(&opts.window, "window", 0, "width of each window; 0 uses history.window")
	f.IntVar(&opts.maxPages, "max-pages", 0, "page cap; 0 uses history.max_pages")
	f.IntVar(&opts.minEntries, "min-entries", 0, "stop once this many entries were collected")
	f.StringVar(&opts.output, "output", "json", "output format: json or yaml")
	return cmd
}

type historyResult struct {
	Pages        []log.Page `json:"pages" yaml:"pages"`
	CursorMillis int64      `json:"cursorMillis" yaml:"cursorMillis"`
	Done         bool       `json:"done" yaml:"done"`
}

func runHistory(ctx context.Context, cfg config.Config, opts historyOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lp, err := api.NewLogProvider(cfg.LogProvider)
	if err != nil {
		return fmt.Errorf("log provider: %w", err)
	}
	if lp == nil {
		return errors.New("log provider not configured")
	}
	vp, err := api.NewVersionProvider(cfg.VersionProvider, cfg.VersionCacheTTL)
	if err != nil {
		return fmt.Errorf("version provider: %w", err)
	}

	req := logquery.Request{Versions: opts.versions}
	if opts.endMillis != 0 {
		req.EndTime = &opts.endMillis
	}
	builderOpts := []logquery.Option{logquery.WithPolicy(cfg.Policy())}
	if vp != nil {
		builderOpts = append(builderOpts, logquery.WithVersionRegistry(vp))
	}
	builder, err := logquery.New(ctx, req, builderOpts...)
	if err != nil {
		return err
	}

	window := opts.window
	if window == 0 {
		window = cfg.History.Window
	}
	maxPages := opts.maxPages
	if maxPages == 0 {
		maxPages = cfg.History.MaxPages
	}
	pager, err := log.NewPager(lp, builder, log.PagerConfig{
		Window:   window,
		MaxPages: maxPages,
		Rate:     rate.Limit(cfg.History.PagesPerSecond),
		Burst:    1,
	})
	if err != nil {
		return err
	}
	pages, err := pager.Collect(ctx, opts.minEntries)
	if err != nil {
		return err
	}
	if pages == nil {
		pages = []log.Page{}
	}
	return render(out, opts.output, historyResult{Pages: pages, CursorMillis: pager.Cursor(), Done: pager.Done()})
}

func newVersionsCmd(load loadFunc) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Print the versions queried when none are given",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runVersions(cmd.Context(), cfg, output, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&output, "output", "json", "output format: json or yaml")
	return cmd
}

func runVersions(ctx context.Context, cfg config.Config, output string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	vp, err := api.NewVersionProvider(cfg.VersionProvider, cfg.VersionCacheTTL)
	if err != nil {
		return fmt.Errorf("version provider: %w", err)
	}
	if vp == nil {
		return errors.New("version provider not configured")
	}
	versions, err := vp.DefaultVersionIDs(ctx)
	if err != nil {
		return err
	}
	return render(out, output, map[string][]string{"versions": versions})
}

func render(out io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		raw, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = out.Write(raw)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
