package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eringen/jerseyfolio"
	"github.com/eringen/jerseyfolio/scaffold"
)

var initSiteURL string

var initCmd = &cobra.Command{
	Use:   "init <dir>",
	Short: "Create a new site directory",
	Long: `Creates a site directory with .env.example, public assets, a seeded data
directory (empty jerseys, default categories and tags) and the image
directories uploads are written to.`,
	Example: `  jerseyfolio init club-shirts`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInit,
}

func init() {
	initCmd.Flags().StringVar(&initSiteURL, "url", "http://localhost:3000", "public site URL")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := args[0]
	secret, err := newSessionSecret()
	if err != nil {
		return err
	}
	created, err := scaffold.Generate(dir, scaffold.Data{
		SiteName:      scaffold.Title(filepath.Base(dir)),
		SiteURL:       initSiteURL,
		SessionSecret: secret,
	})
	if err != nil {
		return err
	}

	if _, err := jerseyfolio.NewStore(filepath.Join(dir, "data"), nil); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}
	cfg := jerseyfolio.SiteConfig{AssetsDir: filepath.Join(dir, "assets")}
	for _, set := range cfg.MirrorSets() {
		if err := os.MkdirAll(set.Dir, 0o755); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, p := range created {
		fmt.Fprintf(out, "  created %s\n", p)
	}
	fmt.Fprintf(out, "  created %s\n", filepath.Join(dir, "data"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  cd %s\n", dir)
	fmt.Fprintln(out, "  cp .env.example .env   # set ADMIN_PASSWORD")
	fmt.Fprintln(out, "  jerseyfolio serve")
	return nil
}

func newSessionSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
