package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"opdscore/internal/config"
	"opdscore/internal/logging"
)

// app carries the state shared by every command of one invocation.
type app struct {
	v          *viper.Viper
	cfg        *config.Config
	logger     *zap.Logger
	out        io.Writer
	configPath string
}

// NewRootCmd builds the opdscore command tree writing results to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "opdscore",
		Short: "Parse OPDS acquisition feeds and track loan status",
		Long: `opdscore parses OPDS 1.x acquisition feeds into book entries, walks a
catalog to keep a local record of each book's loan status, and performs
borrow, return and download operations against the circulation server.

Configuration is read from --config, then OPDS_* environment variables.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file path (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	_ = a.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	// Register sub-commands.
	root.AddCommand(
		a.newParseEntryCmd(),
		a.newParseFeedCmd(),
		a.newSyncCmd(),
		a.newStatusCmd(),
		a.newBorrowCmd(),
		a.newRevokeCmd(),
		a.newFetchCmd(),
	)
	return root
}

// Execute is the entry point called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads the named file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
