package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/client"
	"github.com/eringen/jerseyfolio/resolve"
)

var (
	listCategory string
	listSearch   string
	listSort     string
	listOrder    string
	listPage     int
	listPerPage  int
	listAll      bool
	topCount     int
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Read the catalog from a running server",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jerseys the way the gallery pages them",
	Example: `  jerseyfolio catalog list --category domicile --sort year --order asc
  jerseyfolio catalog list --search vintage --page 2`,
	RunE: runCatalogList,
}

var catalogPopularCmd = &cobra.Command{
	Use:   "popular",
	Short: "List the most viewed jerseys",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalogTop(cmd, catalog.Popular)
	},
}

var catalogRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the newest jerseys",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalogTop(cmd, catalog.Recent)
	},
}

func init() {
	f := catalogListCmd.Flags()
	f.StringVarP(&listCategory, "category", "c", catalog.AllCategories, "category id")
	f.StringVarP(&listSearch, "search", "q", "", "search term")
	f.StringVar(&listSort, "sort", string(catalog.SortDate), "sort key (date, name, year)")
	f.StringVar(&listOrder, "order", string(catalog.Desc), "sort order (asc, desc)")
	f.IntVarP(&listPage, "page", "p", 1, "page number")
	f.IntVar(&listPerPage, "per-page", 0, "items per page; defaults to the server setting")
	f.BoolVar(&listAll, "all", false, "include inactive jerseys")

	for _, c := range []*cobra.Command{catalogPopularCmd, catalogRecentCmd} {
		c.Flags().IntVarP(&topCount, "number", "n", 10, "number of jerseys")
	}
	catalogCmd.AddCommand(catalogListCmd, catalogPopularCmd, catalogRecentCmd)
}

// fetchSnapshot loads the three documents and the display settings in
// parallel.
func fetchSnapshot(ctx context.Context, cl *client.Client) (client.Snapshot, catalog.Settings, error) {
	var (
		snap client.Snapshot
		pc   catalog.PublicConfig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap, err = cl.Snapshot(gctx)
		return err
	})
	g.Go(func() (err error) {
		pc, err = cl.PublicConfig(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return client.Snapshot{}, catalog.Settings{}, err
	}
	return snap, catalog.DefaultSettings().Merge(pc), nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cl, err := client.New(serverURL, client.WithLogger(logger.Named("client")))
	if err != nil {
		return err
	}
	snap, settings, err := fetchSnapshot(cmd.Context(), cl)
	if err != nil {
		return err
	}

	perPage := listPerPage
	if perPage <= 0 {
		perPage = settings.ItemsPerPage
	}
	state := catalog.NewViewState(perPage)
	state.SetCategory(listCategory)
	state.SetSearch(listSearch)
	state.SetSort(catalog.ParseSortKey(listSort), catalog.ParseOrder(listOrder))
	state.GoToPage(listPage)

	items := snap.Jerseys
	if !listAll {
		items = catalog.Active(items)
	}
	page := catalog.Apply(items, state)

	out := cmd.OutOrStdout()
	writeJerseys(out, page.Items, resolve.NewCategories(snap.Categories), resolve.NewTags(snap.Tags))
	p := page.Pagination
	fmt.Fprintf(out, "\npage %d of %d, %d jerseys\n", p.CurrentPage, p.TotalPages, p.TotalItems)
	return nil
}

func runCatalogTop(cmd *cobra.Command, pick func([]catalog.Jersey, int) []catalog.Jersey) error {
	cl, err := client.New(serverURL, client.WithLogger(logger.Named("client")))
	if err != nil {
		return err
	}
	snap, err := cl.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	items := pick(catalog.Active(snap.Jerseys), topCount)
	writeJerseys(cmd.OutOrStdout(), items, resolve.NewCategories(snap.Categories), resolve.NewTags(snap.Tags))
	return nil
}

func writeJerseys(w io.Writer, items []catalog.Jersey, cats, tags *resolve.Resolver) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tYEAR\tCATEGORY\tTAGS\tVIEWS")
	for _, j := range items {
		var names []string
		for _, l := range tags.ResolveAll(j.Tags) {
			names = append(names, l.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			j.ID, j.DisplayTitle(), j.Year, cats.Name(j.Category), strings.Join(names, ", "), j.Views)
	}
	tw.Flush()
}
