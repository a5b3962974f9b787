package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vincentbai/browsetrace-replay/internal/browser"
)

func NewRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record interaction on a page in Chrome until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			url, _ := cmd.Flags().GetString("url")
			if url == "" {
				url = cfg.Browser.URL
			}
			if url == "" {
				return fmt.Errorf("record: --url is required")
			}
			outPath, _ := cmd.Flags().GetString("out")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr := browser.NewManager(browser.Config{
				RemoteURL: cfg.Browser.Remote,
				Headless:  false,
				Logger:    slog.Default(),
			})
			defer mgr.Close()
			page, err := openPage(ctx, mgr, url)
			if err != nil {
				return err
			}
			defer page.Close()

			sess, err := newSession(cfg, page, browser.NewVisual(page))
			if err != nil {
				return err
			}
			sess.Start()
			slog.Info("record: recording, interrupt to stop", "url", url)
			<-ctx.Done()
			sess.Stop()

			out, err := sess.EventsToJSON()
			if err != nil {
				return err
			}
			if outPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}
			if err := os.WriteFile(outPath, []byte(out+"\n"), 0o644); err != nil {
				return err
			}
			slog.Info("record: log written", "path", outPath, "events", sess.Len())
			return nil
		},
	}
	cmd.Flags().String("url", "", "page to record")
	cmd.Flags().String("out", "", "write the log here instead of stdout")
	return cmd
}
