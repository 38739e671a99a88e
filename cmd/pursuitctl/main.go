package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pursuit/internal/config"
	"pursuit/internal/storage"
	pursuitapi "pursuit/pkg/pursuit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries settings resolved once per invocation: defaults, then the
// config file, then the environment, then explicit flags.
type app struct {
	configPath string
	envFile    string
	storeKind  string
	dbPath     string
	logLevel   string

	cfg    config.RunConfig
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pursuitctl",
		Short:         "Run and inspect simple-push pursuit-evasion rollouts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML run config file")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&a.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	flags.StringVar(&a.dbPath, "db-path", "pursuit.db", "sqlite database path")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level: debug|info|warn|error")

	root.AddCommand(
		newRunCommand(a),
		newRunsCommand(a),
		newEpisodesCommand(a),
		newReplayCommand(a),
		newWatchCommand(a),
		newLayoutCommand(a),
	)
	return root
}

func (a *app) resolve(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if cmd.Flags().Changed("store") || (a.configPath == "" && os.Getenv(config.EnvStore) == "") {
		cfg.Store.Kind = a.storeKind
	}
	if cmd.Flags().Changed("db-path") {
		cfg.Store.DBPath = a.dbPath
	}
	a.cfg = cfg

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", a.logLevel, err)
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) client(ctx context.Context) (*pursuitapi.Client, error) {
	client, err := pursuitapi.New(pursuitapi.Options{
		StoreKind: a.cfg.Store.Kind,
		DBPath:    a.cfg.Store.DBPath,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func normalizeName(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
