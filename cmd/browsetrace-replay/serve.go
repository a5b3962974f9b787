package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vincentbai/browsetrace-replay/internal/browser"
	"github.com/vincentbai/browsetrace-replay/internal/database"
	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/server"
	"github.com/vincentbai/browsetrace-replay/internal/visual"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record/replay control surface over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if html, _ := cmd.Flags().GetString("html"); html != "" {
				cfg.Document.HTML = html
			}
			if url, _ := cmd.Flags().GetString("url"); url != "" {
				cfg.Browser.URL = url
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				doc dom.Document
				vis visual.Visual
			)
			if cfg.Browser.URL != "" {
				mgr := browser.NewManager(browser.Config{
					RemoteURL: cfg.Browser.Remote,
					Headless:  cfg.Browser.Headless,
					Logger:    slog.Default(),
				})
				defer mgr.Close()
				page, err := openPage(ctx, mgr, cfg.Browser.URL)
				if err != nil {
					return err
				}
				defer page.Close()
				doc, vis = page, browser.NewVisual(page)
			} else {
				d, err := loadDocument(cfg.Document.HTML)
				if err != nil {
					return fmt.Errorf("load document: %w", err)
				}
				doc = d
			}

			dbPath, err := cfg.DatabasePath()
			if err != nil {
				return err
			}
			db, err := database.NewDatabase(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			sess, err := newSession(cfg, doc, vis)
			if err != nil {
				return err
			}
			defer sess.Stop()

			return server.NewServer(sess, db, cfg.Server.Address).Start(ctx)
		},
	}
	cmd.Flags().String("html", "", "HTML fixture for the in-memory document")
	cmd.Flags().String("url", "", "record and replay on this page in Chrome")
	return cmd
}

func openPage(ctx context.Context, mgr *browser.Manager, url string) (*browser.Page, error) {
	if _, err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return browser.OpenPage(ctx, mgr, url)
}
