package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagStore      string
	flagBucket     string
	flagPartSize   int64
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// CLIContext bundles the resolved config and logger, created once in
// PersistentPreRunE.
type CLIContext struct {
	Cfg    *Config
	Logger *slog.Logger
}

type cliContextKey struct{}

// cliContext extracts the CLIContext; the command tree guarantees it is
// populated before any RunE executes.
func cliContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("BUG: CLIContext missing — PersistentPreRunE did not run")
	}

	return cc
}

// buildLogger maps the flags to a slog handler: text on a TTY, JSON
// otherwise, overridable via the config file.
func buildLogger(cfg *Config) *slog.Logger {
	level := slog.LevelInfo

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	default:
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	format := cfg.LogFormat
	if format == "" || format == "auto" {
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "text"
		} else {
			format = "json"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore opens the configured store for one command invocation.
func openStore(cmd *cobra.Command) (*omnio.Omnio, *CLIContext, error) {
	cc := cliContext(cmd.Context())

	root := flagStore
	if root == "" {
		root = cc.Cfg.Store
	}

	if root == "" {
		return nil, nil, fmt.Errorf("no store configured: pass --store or set store in the config file")
	}

	opts := []omnio.Option{
		omnio.WithLogger(cc.Logger),
		omnio.WithBucket(resolveBucket(cc)),
	}

	partSize := flagPartSize
	if partSize == 0 {
		partSize = cc.Cfg.PartSize
	}

	if partSize > 0 {
		opts = append(opts, omnio.WithPartSize(partSize))
	}

	store, err := omnio.Open(cmd.Context(), root, opts...)
	if err != nil {
		return nil, nil, err
	}

	return store, cc, nil
}

func resolveBucket(cc *CLIContext) string {
	if flagBucket != "" {
		return flagBucket
	}

	return cc.Cfg.Bucket
}

// newRootCmd builds the fully-assembled command tree.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "omnio",
		Short:   "Embedded object store CLI",
		Long:    "Manage an omnio object store: put, get, list, search and trash objects.",
		Version: version,
		// Errors are printed by main; keep cobra quiet.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(flagConfigPath)
			if err != nil {
				return err
			}

			cc := &CLIContext{Cfg: cfg, Logger: buildLogger(cfg)}
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "config file path")
	pf.StringVar(&flagStore, "store", "", "store root directory")
	pf.StringVar(&flagBucket, "bucket", "", "bucket name")
	pf.Int64Var(&flagPartSize, "part-size", 0, "part size in bytes for new objects")
	pf.BoolVar(&flagJSON, "json", false, "machine-readable output")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	pf.BoolVar(&flagDebug, "debug", false, "debug logging")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "errors only")

	cmd.AddCommand(
		newPutCmd(),
		newGetCmd(),
		newLsCmd(),
		newStatCmd(),
		newRmCmd(),
		newTrashCmd(),
		newSearchCmd(),
		newMetaCmd(),
	)

	return cmd
}
