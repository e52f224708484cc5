package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mathtutor/internal/config"
	"mathtutor/internal/conversation"
	"mathtutor/internal/logger"
	"mathtutor/internal/pipeline"
	"mathtutor/internal/server"
	"mathtutor/internal/services"
	"mathtutor/internal/shell"
	"mathtutor/internal/version"
	"mathtutor/pkg/tutortypes"
)

// cliFlags holds values of persistent flags that are not configuration keys.
type cliFlags struct {
	logLevel  string
	logFile   string
	configDir string
	plain     bool
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	backend tutortypes.Backend
	store   *conversation.Store
	orch    *pipeline.Orchestrator
	closer  io.Closer
}

func (a *app) Close() {
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			logger.Warn("Failed to close storage", "error", err)
		}
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "tutor",
		Short: "Math tutor - plan, explain and self-check math help from an LLM",
		Long: `tutor is a math tutoring assistant. Every reply is planned by a strategist prompt,
written by a tutor prompt and checked by an auditor prompt before you see it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logger.Configure(flags.logLevel, flags.logFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, v, flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	pf.StringVar(&flags.logFile, "log-file", "", "Write logs to file instead of stderr")
	pf.StringVar(&flags.configDir, "config-dir", "", "Configuration directory [default: ~/.config/mathtutor]")
	pf.String("provider", "", "LLM provider (groq|openai|openrouter|anthropic|gemini|relay)")
	pf.String("model", "", "Model name for the provider")
	pf.String("base-url", "", "Override the provider endpoint")
	pf.String("storage", "", "Conversation storage (file|sqlite|memory)")
	pf.Bool("fail-open", false, "Accept replies whose audit verdict cannot be parsed")

	for key, flag := range map[string]string{
		config.KeyProvider:       "provider",
		config.KeyModel:          "model",
		config.KeyBaseURL:        "base-url",
		config.KeyStorageBackend: "storage",
		config.KeyAuditFailOpen:  "fail-open",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive tutoring shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, v, flags)
		},
	}
	chatCmd.Flags().BoolVar(&flags.plain, "plain", false, "Disable colors and markdown styling")

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the tutor's reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, v, flags, strings.Join(args, " "))
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newStorageApp(v, flags)
			if err != nil {
				return err
			}
			defer a.Close()
			a.store.Reset(cmd.Context())
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Conversation cleared.")
			return nil
		},
	}

	var exportFormat string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Print the stored conversation as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newStorageApp(v, flags)
			if err != nil {
				return err
			}
			defer a.Close()
			return conversation.Export(cmd.OutOrStdout(), a.store.Snapshot(), exportFormat)
		},
	}
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", conversation.FormatJSON, "Export format (json|yaml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the relay and tutor HTTP APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v, flags)
		},
	}
	serveCmd.Flags().String("addr", "", "Listen address [default: :8080]")
	if err := v.BindPFlag(config.KeyServerAddr, serveCmd.Flags().Lookup("addr")); err != nil {
		panic(fmt.Sprintf("failed to bind addr flag: %v", err))
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.GetFormattedVersion())
		},
	}

	rootCmd.AddCommand(chatCmd, askCmd, resetCmd, exportCmd, serveCmd, versionCmd)
	return rootCmd
}

func loadConfig(v *viper.Viper, flags *cliFlags) (*config.Config, error) {
	return config.Load(v, config.Options{ConfigDir: flags.configDir})
}

// newStorageApp wires configuration and the conversation store only.
func newStorageApp(v *viper.Viper, flags *cliFlags) (*app, error) {
	cfg, err := loadConfig(v, flags)
	if err != nil {
		return nil, err
	}

	persister, closer, err := conversation.NewPersister(cfg.Storage)
	if err != nil {
		return nil, err
	}
	store := conversation.NewStore(persister)
	store.Load(context.Background())

	return &app{cfg: cfg, store: store, closer: closer}, nil
}

// newTutorApp wires storage, backend and orchestrator.
func newTutorApp(v *viper.Viper, flags *cliFlags) (*app, error) {
	a, err := newStorageApp(v, flags)
	if err != nil {
		return nil, err
	}

	backend, err := services.NewBackend(a.cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.backend = backend
	a.orch = pipeline.NewOrchestrator(backend, a.store, pipeline.Options{FailOpen: a.cfg.AuditFailOpen})

	logger.Debug("Tutor ready", "provider", backend.Name(), "storage", a.cfg.Storage.Backend, "messages", len(a.store.Messages()))
	return a, nil
}

func runChat(cmd *cobra.Command, v *viper.Viper, flags *cliFlags) error {
	a, err := newTutorApp(v, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	renderer, err := shell.NewRenderer(80, flags.plain)
	if err != nil {
		return err
	}

	rl, err := shell.NewReadline(filepath.Join(a.cfg.ConfigDir, "history"))
	if err != nil {
		return fmt.Errorf("failed to start line editor: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return shell.New(a.orch, renderer, rl.Stdout()).Run(ctx, rl)
}

func runAsk(cmd *cobra.Command, v *viper.Viper, flags *cliFlags, question string) error {
	a, err := newTutorApp(v, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.orch.Submit(cmd.Context(), question)
	if err != nil {
		return err
	}
	// Every turn appends exactly one model message; Reply is its text.
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), outcome.Reply)
	return nil
}

func runServe(cmd *cobra.Command, v *viper.Viper, flags *cliFlags) error {
	a, err := newTutorApp(v, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := server.Options{
		Addr:         a.cfg.Server.Addr,
		Orchestrator: a.orch,
	}
	// A relay in front of another relay would only forward to itself.
	if a.cfg.Provider != "relay" {
		opts.Relay = a.backend
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(opts).ListenAndServe(ctx)
}
