package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/jerseyfolio"
	"github.com/eringen/jerseyfolio/mirror"
)

var (
	mirrorSince       time.Duration
	mirrorConcurrency int
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Copy jersey images and thumbnails to S3",
	Long: `Uploads ASSETS_DIR/images/jerseys and ASSETS_DIR/images/thumbnails to
S3_BUCKET, keyed as they are served under /assets. S3_ENDPOINT selects an
S3-compatible service such as MinIO.`,
	Example: `  jerseyfolio mirror
  jerseyfolio mirror --since 24h`,
	Args: cobra.NoArgs,
	RunE: runMirror,
}

func init() {
	mirrorCmd.Flags().DurationVar(&mirrorSince, "since", 0, "only files modified within this duration")
	mirrorCmd.Flags().IntVar(&mirrorConcurrency, "concurrency", 4, "parallel uploads")
}

func runMirror(cmd *cobra.Command, args []string) error {
	cfg, err := jerseyfolio.LoadConfig()
	if err != nil {
		return err
	}
	opts := []mirror.Option{
		mirror.WithLogger(logger.Named("mirror")),
		mirror.WithConcurrency(mirrorConcurrency),
	}
	if mirrorSince > 0 {
		opts = append(opts, mirror.WithSince(time.Now().Add(-mirrorSince)))
	}
	m, err := mirror.New(cmd.Context(), cfg.S3.Mirror(), opts...)
	if err != nil {
		return err
	}
	res, err := m.Sync(cmd.Context(), cfg.MirrorSets()...)
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d files (%d bytes), skipped %d\n", res.Uploaded, res.Bytes, res.Skipped)
	return err
}
