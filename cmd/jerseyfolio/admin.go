package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/client"
)

var (
	defColor    string
	revDocument string
	remoteMode   string
	remoteCount  int
	remoteImages bool
	remoteDelete bool
	remoteDryRun bool
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administer a running server",
	Long: `Admin calls against a running server. Every subcommand logs in with
ADMIN_USERNAME (default "admin") and ADMIN_PASSWORD and logs out when done.`,
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog totals and the most viewed jerseys",
	Args:  cobra.NoArgs,
	RunE: withAdmin(func(ctx context.Context, cl *client.Client, cmd *cobra.Command, args []string) error {
		st, err := cl.Stats(ctx)
		if err != nil {
			return err
		}
		writeStats(cmd.OutOrStdout(), st)
		return nil
	}),
}

var adminRevisionsCmd = &cobra.Command{
	Use:   "revisions",
	Short: "List stored document revisions, newest first",
	Args:  cobra.NoArgs,
	RunE: withAdmin(func(ctx context.Context, cl *client.Client, cmd *cobra.Command, args []string) error {
		revs, err := cl.Revisions(ctx, revDocument)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDOCUMENT\tITEMS\tCREATED\tREASON")
		for _, r := range revs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Document, r.Items, r.CreatedAt.Local().Format(time.DateTime), r.Reason)
		}
		return tw.Flush()
	}),
}

var adminRestoreCmd = &cobra.Command{
	Use:   "restore <revision-id>",
	Short: "Put a stored revision back in place",
	Args:  cobra.ExactArgs(1),
	RunE: withAdmin(func(ctx context.Context, cl *client.Client, cmd *cobra.Command, args []string) error {
		if err := cl.Restore(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", args[0])
		return nil
	}),
}

var adminCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run a catalog cleanup on the server",
	Args:  cobra.NoArgs,
	RunE: withAdmin(func(ctx context.Context, cl *client.Client, cmd *cobra.Command, args []string) error {
		res, err := cl.Clean(ctx, catalog.CleanMode(remoteMode), remoteCount)
		if err != nil {
			return err
		}
		writeCleanResult(cmd.OutOrStdout(), res)
		if !remoteImages {
			return nil
		}
		rep, err := cl.CleanImages(ctx, false)
		if err != nil {
			return err
		}
		writeImageReport(cmd.OutOrStdout(), rep)
		return nil
	}),
}

var adminImagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Check jersey images on the server",
	Long: `Lists jerseys whose images are missing or not image files, and image
files no jersey references. With --delete the unreferenced files are removed.`,
	Args: cobra.NoArgs,
	RunE: withAdmin(func(ctx context.Context, cl *client.Client, cmd *cobra.Command, args []string) error {
		var (
			rep catalog.ImageReport
			err error
		)
		if remoteDelete {
			rep, err = cl.CleanImages(ctx, remoteDryRun)
		} else {
			rep, err = cl.CheckImages(ctx)
		}
		if err != nil {
			return err
		}
		writeImageReport(cmd.OutOrStdout(), rep)
		return nil
	}),
}

var adminCoverCmd = &cobra.Command{
	Use:   "cover <jersey-id> <image>",
	Short: "Set a jersey's cover image",
	Args:  cobra.ExactArgs(2),
	RunE: withAdmin(func(ctx context.Context, cl *client.Client, cmd *cobra.Command, args []string) error {
		return cl.UpdateCover(ctx, args[0], args[1])
	}),
}

var adminCategoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Create, update or delete categories",
}

var adminTagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Create, update or delete tags",
}

// definitionCommands builds the create/update/delete trio for one kind of
// definition.
func definitionCommands(kind string,
	create func(*client.Client, context.Context, string, string) (string, error),
	update func(*client.Client, context.Context, string, string, string) error,
	remove func(*client.Client, context.Context, string) error,
) []*cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(func(ctx context.Context, cl *client.Client, cmd *cobra.Command, args []string) error {
			id, err := create(cl, ctx, args[0], defColor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s\n", kind, id)
			return nil
		}),
	}
	updateCmd := &cobra.Command{
		Use:   "update <id> [name]",
		Short: "Rename or recolor a " + kind,
		Args:  cobra.RangeArgs(1, 2),
		RunE: withAdmin(func(ctx context.Context, cl *client.Client, cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return update(cl, ctx, args[0], name, defColor)
		}),
	}
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(func(ctx context.Context, cl *client.Client, cmd *cobra.Command, args []string) error {
			return remove(cl, ctx, args[0])
		}),
	}
	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().StringVar(&defColor, "color", "", "hex color")
	}
	return []*cobra.Command{createCmd, updateCmd, deleteCmd}
}

func init() {
	adminRevisionsCmd.Flags().StringVar(&revDocument, "document", "", "only revisions of this document (jerseys, categories, tags)")
	adminCleanCmd.Flags().StringVar(&remoteMode, "mode", string(catalog.CleanDuplicates), "cleanup mode (duplicates, no-images, last, all)")
	adminCleanCmd.Flags().IntVarP(&remoteCount, "number", "n", 0, "jerseys to remove from the end with --mode last")
	adminCleanCmd.Flags().BoolVar(&remoteImages, "images", false, "also delete image files no jersey references")
	adminImagesCmd.Flags().BoolVar(&remoteDelete, "delete", false, "delete image files no jersey references")
	adminImagesCmd.Flags().BoolVar(&remoteDryRun, "dry-run", false, "with --delete, report without deleting")

	adminCategoryCmd.AddCommand(definitionCommands("category",
		func(cl *client.Client, ctx context.Context, name, color string) (string, error) {
			c, err := cl.CreateCategory(ctx, name, color)
			return c.ID, err
		},
		(*client.Client).UpdateCategory,
		(*client.Client).DeleteCategory,
	)...)
	adminTagCmd.AddCommand(definitionCommands("tag",
		func(cl *client.Client, ctx context.Context, name, color string) (string, error) {
			t, err := cl.CreateTag(ctx, name, color)
			return t.ID, err
		},
		(*client.Client).UpdateTag,
		(*client.Client).DeleteTag,
	)...)

	adminCmd.AddCommand(adminStatsCmd, adminRevisionsCmd, adminRestoreCmd, adminCleanCmd, adminImagesCmd, adminCoverCmd, adminCategoryCmd, adminTagCmd)
}

type adminFunc func(ctx context.Context, cl *client.Client, cmd *cobra.Command, args []string) error

// withAdmin runs fn with a logged-in client.
func withAdmin(fn adminFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cl, err := client.New(serverURL, client.WithLogger(logger.Named("client")))
		if err != nil {
			return err
		}
		if err := adminLogin(ctx, cl); err != nil {
			return err
		}
		defer func() {
			if err := cl.Logout(context.Background()); err != nil {
				logger.Debug("logout", zap.Error(err))
			}
		}()
		return fn(ctx, cl, cmd, args)
	}
}

func writeStats(w io.Writer, st client.Stats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "jerseys\t%d (%d active, %d inactive)\n", st.TotalJerseys, st.ActiveJerseys, st.InactiveJerseys)
	fmt.Fprintf(tw, "categories\t%d (%d dangling references)\n", st.Categories, st.DanglingCategories)
	fmt.Fprintf(tw, "tags\t%d (%d dangling references)\n", st.Tags, st.DanglingTags)
	if st.LastUpdated != "" {
		fmt.Fprintf(tw, "last updated\t%s\n", st.LastUpdated)
	}
	tw.Flush()
	if len(st.TopViewed) == 0 {
		return
	}
	fmt.Fprintln(w, "\nmost viewed:")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, v := range st.TopViewed {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", v.ID, v.Title, v.Views)
	}
	tw.Flush()
}

func writeCleanResult(w io.Writer, res catalog.CleanResult) {
	fmt.Fprintf(w, "%s: kept %d of %d jerseys, removed %d\n", res.Mode, res.After, res.Before, res.Removed)
}

func writeImageReport(w io.Writer, rep catalog.ImageReport) {
	fmt.Fprintf(w, "images: %d of %d jerseys valid, %d problems\n", rep.Valid, rep.Checked, len(rep.Problems))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range rep.Problems {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.ID, p.Title, p.Reason, p.File)
	}
	tw.Flush()
	switch {
	case len(rep.Orphans) == 0:
		fmt.Fprintln(w, "no unreferenced image files")
	case rep.Removed > 0:
		fmt.Fprintf(w, "removed %d of %d unreferenced image files\n", rep.Removed, len(rep.Orphans))
	default:
		fmt.Fprintf(w, "%d unreferenced image files:\n", len(rep.Orphans))
		for _, o := range rep.Orphans {
			fmt.Fprintf(w, "  %s\n", o)
		}
	}
}
