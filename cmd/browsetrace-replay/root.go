package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vincentbai/browsetrace-replay/internal/config"
	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/dom/htmldoc"
	"github.com/vincentbai/browsetrace-replay/internal/playback"
	"github.com/vincentbai/browsetrace-replay/internal/session"
	"github.com/vincentbai/browsetrace-replay/internal/visual"
)

const AppName = "browsetrace-replay"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Record and replay user interaction on a page",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			logger, err := newLogger(level)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", "", "YAML configuration file")
	cmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error")

	cmd.AddCommand(
		NewServeCmd(),
		NewReplayCmd(),
		NewRecordCmd(),
	)
	return cmd
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}

// loadDocument parses the HTML fixture at path, or returns an empty
// document when path is empty.
func loadDocument(path string) (*htmldoc.Document, error) {
	if path == "" {
		return htmldoc.Empty(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return htmldoc.New(f)
}

// sessionOptions maps the session section of cfg to session options.
func sessionOptions(cfg *config.Config, vis visual.Visual) ([]session.Option, error) {
	mode, err := playback.ParseMode(cfg.Session.Mode)
	if err != nil {
		return nil, err
	}
	opts := []session.Option{
		session.WithLogger(slog.Default()),
		session.WithSpeed(cfg.Session.PlaybackSpeed),
		session.WithDelay(cfg.Session.Delay),
		session.WithMode(mode),
		session.WithScrollToTop(cfg.Session.ScrollToTop),
		session.WithLogEvents(cfg.Session.LogEvents...),
		session.WithExcludedIDs(cfg.Session.ExcludeIDs...),
	}
	if vis != nil {
		opts = append(opts, session.WithVisual(vis))
	}
	return opts, nil
}

func newSession(cfg *config.Config, doc dom.Document, vis visual.Visual, extra ...session.Option) (*session.Session, error) {
	opts, err := sessionOptions(cfg, vis)
	if err != nil {
		return nil, err
	}
	return session.New(doc, append(opts, extra...)...), nil
}
