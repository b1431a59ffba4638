package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio"
	"github.com/eringen/jerseyfolio/catalog"
)

var (
	cleanMode   string
	cleanCount  int
	cleanDryRun bool
	cleanImages bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean jerseys.json in the local data directory",
	Long: `Removes jerseys from DATA_DIR/jerseys.json without a running server:

  duplicates  keep the first jersey of each title
  no-images   drop jerseys without a usable image: the file must have an
              image extension and, when local, exist under ASSETS_DIR
  last        remove the last --number jerseys
  all         duplicates, then no-images

With --images, image files under ASSETS_DIR that no jersey references are
deleted afterwards, and jerseys with missing image files are listed.

The replaced document is recorded as a revision, so the cleanup can be
undone with 'jerseyfolio admin restore'. A running server picks the change
up from disk.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().StringVar(&cleanMode, "mode", string(catalog.CleanDuplicates), "cleanup mode (duplicates, no-images, last, all)")
	cleanCmd.Flags().IntVarP(&cleanCount, "number", "n", 0, "jerseys to remove from the end with --mode last")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "report without writing")
	cleanCmd.Flags().BoolVar(&cleanImages, "images", false, "also delete image files no jersey references")
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := jerseyfolio.LoadConfig()
	if err != nil {
		return err
	}
	mode := catalog.CleanMode(cleanMode)

	history, err := jerseyfolio.OpenHistory(cfg.DatabasePath, cfg.RevisionsKeep)
	if err != nil {
		return fmt.Errorf("open revisions: %w", err)
	}
	defer history.Close()
	store, err := jerseyfolio.NewStore(cfg.DataDir, history)
	if err != nil {
		return err
	}
	store.SetLogger(logger)

	var res catalog.CleanResult
	if cleanDryRun {
		items, err := store.Jerseys()
		if err != nil {
			return err
		}
		if _, res, err = catalog.CleanWith(items, mode, cleanCount, cfg.ImageExists); err != nil {
			return err
		}
	} else {
		err = store.UpdateJerseys("clean "+cleanMode, func(items []catalog.Jersey) ([]catalog.Jersey, error) {
			kept, r, err := catalog.CleanWith(items, mode, cleanCount, cfg.ImageExists)
			res = r
			return kept, err
		})
		if err != nil {
			return err
		}
		logger.Info("catalog cleaned", zap.String("mode", cleanMode), zap.Int("removed", res.Removed))
	}
	writeCleanResult(cmd.OutOrStdout(), res)
	if !cleanImages {
		return nil
	}

	// A dry run reports against the document as it is.
	items, err := store.Jerseys()
	if err != nil {
		return err
	}
	rep, err := cfg.CheckImages(items)
	if err != nil {
		return err
	}
	rep.DryRun = cleanDryRun
	if !cleanDryRun {
		rep.Removed, err = cfg.RemoveOrphans(rep)
		logger.Info("unused images removed", zap.Int("orphans", len(rep.Orphans)), zap.Int("removed", rep.Removed))
	}
	writeImageReport(cmd.OutOrStdout(), rep)
	return err
}
