package jerseyfolio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/catalog"
)

// ImageExists reports whether a local image reference names a file. Paths
// served under /assets resolve against AssetsDir; any other reference is
// looked up by file name in the images and thumbnails directories.
func (c SiteConfig) ImageExists(ref string) bool {
	ref = strings.TrimSpace(ref)
	if rest, ok := strings.CutPrefix(strings.TrimPrefix(ref, "/"), "assets/"); ok {
		clean := path.Clean(rest)
		if clean == "." || strings.HasPrefix(clean, "..") {
			return false
		}
		return fileExists(filepath.Join(c.AssetsDir, filepath.FromSlash(clean)))
	}
	name := path.Base(ref)
	if ref == "" || name == "." || name == "/" || name == ".." {
		return false
	}
	for _, set := range c.MirrorSets() {
		if fileExists(filepath.Join(set.Dir, name)) {
			return true
		}
	}
	return false
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

// CheckImages reports jerseys whose images cannot be served and files in
// the image directories that no jersey references.
func (c SiteConfig) CheckImages(items []catalog.Jersey) (catalog.ImageReport, error) {
	rep := catalog.ImageReport{Checked: len(items), Problems: []catalog.ImageProblem{}, Orphans: []string{}}
	referenced := make(map[string]struct{})
	for _, it := range items {
		refs := append([]string(nil), it.Images...)
		if it.Thumbnail != "" {
			refs = append(refs, it.Thumbnail)
		}
		if len(refs) == 0 {
			rep.Problems = append(rep.Problems, catalog.ImageProblem{ID: it.ID, Title: it.DisplayTitle(), Reason: catalog.ImageNone})
			continue
		}
		ok := true
		for _, ref := range refs {
			if ref == "" || catalog.IsRemoteImage(ref) {
				continue
			}
			referenced[path.Base(ref)] = struct{}{}
			reason := ""
			switch {
			case !catalog.HasImageExt(ref):
				reason = catalog.ImageBadExtension
			case !c.ImageExists(ref):
				reason = catalog.ImageMissingFile
			}
			if reason != "" {
				ok = false
				rep.Problems = append(rep.Problems, catalog.ImageProblem{ID: it.ID, Title: it.DisplayTitle(), File: ref, Reason: reason})
			}
		}
		if ok {
			rep.Valid++
		}
	}

	for _, set := range c.MirrorSets() {
		entries, err := os.ReadDir(set.Dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return catalog.ImageReport{}, fmt.Errorf("read %s: %w", set.Dir, err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if _, used := referenced[e.Name()]; !used {
				rep.Orphans = append(rep.Orphans, path.Join(set.Prefix, e.Name()))
			}
		}
	}
	sort.Strings(rep.Orphans)
	return rep, nil
}

// RemoveOrphans deletes the orphans listed in rep and returns how many were
// removed. Files already gone are not an error.
func (c SiteConfig) RemoveOrphans(rep catalog.ImageReport) (int, error) {
	removed := 0
	var errs []error
	for _, rel := range rep.Orphans {
		err := os.Remove(filepath.Join(c.AssetsDir, filepath.FromSlash(rel)))
		switch {
		case err == nil:
			removed++
		case !errors.Is(err, os.ErrNotExist):
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

// CheckImages checks the stored jerseys against the assets directory.
func (a *App) CheckImages(ctx context.Context) (catalog.ImageReport, error) {
	items, err := a.Store.Jerseys()
	if err != nil {
		return catalog.ImageReport{}, fmt.Errorf("jerseyfolio: check images: %w", err)
	}
	return a.Config.CheckImages(items)
}

// CleanImages deletes image files no jersey references. With dryRun the
// report lists them without deleting anything.
func (a *App) CleanImages(ctx context.Context, dryRun bool) (catalog.ImageReport, error) {
	rep, err := a.CheckImages(ctx)
	if err != nil {
		return catalog.ImageReport{}, err
	}
	rep.DryRun = dryRun
	if dryRun || len(rep.Orphans) == 0 {
		return rep, nil
	}
	rep.Removed, err = a.Config.RemoveOrphans(rep)
	a.Logger.Info("unused images removed", zap.Int("orphans", len(rep.Orphans)), zap.Int("removed", rep.Removed))
	if err != nil {
		return rep, fmt.Errorf("jerseyfolio: clean images: %w", err)
	}
	return rep, nil
}

func (a *App) handleImageCheck(c echo.Context) error {
	rep, err := a.CheckImages(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

type imageCleanRequest struct {
	DryRun bool `json:"dry_run"`
}

func (a *App) handleImageClean(c echo.Context) error {
	var req imageCleanRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return apiError(http.StatusBadRequest, "invalid JSON body")
		}
	}
	rep, err := a.CleanImages(c.Request().Context(), req.DryRun)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}
