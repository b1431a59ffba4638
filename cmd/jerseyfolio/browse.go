package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/adminpanel"
	"github.com/eringen/jerseyfolio/broadcast"
	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/client"
	"github.com/eringen/jerseyfolio/gallery"
	"github.com/eringen/jerseyfolio/tui"
)

var browseAdmin bool

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the catalog in the terminal",
	Long: `Opens an interactive gallery backed by a running server. Pages reload
whenever the catalog changes on the server.

With --admin, the client logs in with ADMIN_USERNAME and ADMIN_PASSWORD and
the admin panel is available with 'a'.`,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().BoolVar(&browseAdmin, "admin", false, "log in and enable the admin panel")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The terminal owns stdout; only warnings reach the log.
	log := logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))

	cl, err := client.New(serverURL, client.WithLogger(log.Named("client")))
	if err != nil {
		return err
	}

	settings := catalog.DefaultSettings()
	if pc, err := cl.PublicConfig(ctx); err != nil {
		log.Warn("public config unavailable, using defaults", zap.Error(err))
	} else {
		settings = settings.Merge(pc)
	}

	hub := broadcast.NewHub(broadcast.WithLogger(log.Named("broadcast")))
	defer hub.Close()
	sub := hub.Subscribe(0)
	defer sub.Close()

	var panel *adminpanel.Panel
	if browseAdmin {
		if err := adminLogin(ctx, cl); err != nil {
			return err
		}
		defer cl.Logout(context.Background())
		panel = adminpanel.New(cl, hub, adminpanel.WithLogger(log.Named("admin")))
	}

	// Server events are fed into the local hub, where the panel's own saves
	// also land, so the model has a single change channel.
	go func() {
		err := cl.Events(ctx, client.DefaultRetry, hub.Deliver)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("event stream stopped", zap.Error(err))
		}
	}()

	model := tui.New(tui.Config{
		Context: ctx,
		Gallery: gallery.New(cl, settings, gallery.WithLogger(log.Named("gallery"))),
		Panel:   panel,
		Events:  sub.C,
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	return nil
}

// adminLogin signs cl in with the credentials from the environment.
func adminLogin(ctx context.Context, cl *client.Client) error {
	user := envOr("ADMIN_USERNAME", "admin")
	pass := os.Getenv("ADMIN_PASSWORD")
	if pass == "" {
		return errors.New("ADMIN_PASSWORD must be set for admin commands")
	}
	if err := cl.Login(ctx, user, pass); err != nil {
		return fmt.Errorf("login as %s: %w", user, err)
	}
	return nil
}
