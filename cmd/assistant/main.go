package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xaenox/edu-assistant/internal/export"
	"github.com/xaenox/edu-assistant/internal/gateway"
	"github.com/xaenox/edu-assistant/internal/profile"
	"github.com/xaenox/edu-assistant/internal/session"
	"github.com/xaenox/edu-assistant/pkg/config"
	"go.uber.org/zap"
)

// Version info set via ldflags at build time.
var Version = "dev"

// app holds what every subcommand needs. It is built once per invocation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	profiles profile.Store
	client   *gateway.Client
	session  *session.Session
	exporter *export.Exporter
}

type rootFlags struct {
	configPath string
	profile    string
	backendURL string
	debug      bool
}

func newRootCmd() *cobra.Command {
	var (
		flags rootFlags
		a     = &app{}
	)

	cmd := &cobra.Command{
		Use:           "assistant",
		Short:         "Study assistant: questions, quizzes and tasks",
		Long:          "Chat with the study assistant backend and manage your saved conversations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.open(cmd.Context(), flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "config.yaml", "path to the config file")
	cmd.PersistentFlags().StringVarP(&flags.profile, "profile", "p", "", "profile name (overrides profile.name)")
	cmd.PersistentFlags().StringVar(&flags.backendURL, "backend", "", "backend URL (overrides backend.url)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable development logging")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newChatCmd(a))
	cmd.AddCommand(newConversationsCmd(a))
	cmd.AddCommand(newExportDialogCmd(a))
	cmd.AddCommand(newThemeCmd(a))
	cmd.AddCommand(newWhoamiCmd(a))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "assistant %s\n", Version)
		},
	}
}

func (a *app) open(ctx context.Context, flags rootFlags) error {
	var err error
	if flags.debug {
		a.logger, err = zap.NewDevelopment()
	} else {
		a.logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	a.cfg, err = config.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if flags.profile != "" {
		a.cfg.Profile.Name = flags.profile
	}
	if flags.backendURL != "" {
		a.cfg.Backend.URL = flags.backendURL
	}

	a.profiles, err = profile.Open(a.cfg.Profile.Driver, a.cfg.Profile.Path)
	if err != nil {
		return err
	}

	settings := profile.NewSettings(a.profiles, a.cfg.Profile.Name)
	store, err := session.NewStore(ctx, settings, a.logger)
	if err != nil {
		return err
	}

	a.client = gateway.NewClient(a.cfg.Backend.URL, a.cfg.Backend.Timeout, a.logger)
	a.session = session.New(store, a.client, session.Options{
		AskK:    a.cfg.Backend.AskK,
		QuizNum: a.cfg.Backend.QuizNum,
		Texts: session.Texts{
			Fallback:    a.cfg.Texts.Fallback,
			QuizFormat:  a.cfg.Texts.QuizFormat,
			TaskFormat:  a.cfg.Texts.TaskFormat,
			TitleLayout: a.cfg.Texts.TitleLayout,
		},
	}, a.logger)
	a.exporter = export.NewExporter(a.cfg.Export.Dir, settings, a.logger)
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		a.logger.Sync()
	}
	if a.profiles != nil {
		return a.profiles.Close()
	}
	return nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
