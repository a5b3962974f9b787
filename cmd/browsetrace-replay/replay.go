package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vincentbai/browsetrace-replay/internal/models"
	"github.com/vincentbai/browsetrace-replay/internal/session"
)

func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay LOG.json",
		Short: "Replay a serialized log against an HTML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("speed") {
				cfg.Session.PlaybackSpeed, _ = cmd.Flags().GetFloat64("speed")
			}
			html, _ := cmd.Flags().GetString("html")
			if html == "" {
				html = cfg.Document.HTML
			}

			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := loadDocument(html)
			if err != nil {
				return fmt.Errorf("load document: %w", err)
			}

			out := cmd.OutOrStdout()
			done := make(chan struct{})
			sess, err := newSession(cfg, doc, nil,
				session.WithDispatchHook(func(_ int, rec models.PortableRecord) {
					target := string(rec.Target)
					if rec.Target.IsNull() {
						target = "null"
					}
					fmt.Fprintf(out, "%s %s\n", rec.Type, target)
				}),
				session.WithFinishHook(func() { close(done) }))
			if err != nil {
				return err
			}
			if _, err := sess.SetPlaybackSpeed(cfg.Session.PlaybackSpeed); err != nil {
				return err
			}

			records, err := sess.JSONToEvents(string(src))
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess.Play()
			select {
			case <-done:
			case <-ctx.Done():
				sess.Stop()
			}
			return nil
		},
	}
	cmd.Flags().String("html", "", "HTML fixture to replay against")
	cmd.Flags().Float64("speed", 1, "playback speed multiplier")
	return cmd
}
