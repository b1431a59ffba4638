package jerseyfolio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/eringen/jerseyfolio/mirror"
)

const (
	maxImageWidth = 1200
	thumbnailSize = 400
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB

	imagesSubdir     = "images/jerseys"
	thumbnailsSubdir = "images/thumbnails"
)

// UploadedImage describes a stored upload and its thumbnail.
type UploadedImage struct {
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail_url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Size      int    `json:"size"`
}

// processImage decodes an image from src, resizes it to maxImageWidth when
// wider, and returns the JPEG encodings of the image and a square thumbnail.
func processImage(src io.Reader) (full, thumb []byte, w, h int, err error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h = bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxImageWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, nil, 0, 0, fmt.Errorf("encode jpeg: %w", err)
	}
	full = buf.Bytes()

	var tbuf bytes.Buffer
	square := imaging.Fill(img, thumbnailSize, thumbnailSize, imaging.Center, imaging.Lanczos)
	if err := imaging.Encode(&tbuf, square, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, nil, 0, 0, fmt.Errorf("encode thumbnail: %w", err)
	}
	return full, tbuf.Bytes(), w, h, nil
}

// imageFilename converts an upload name to a URL-safe .jpg filename.
func imageFilename(name string) string {
	base := Slugify(strings.TrimSuffix(name, filepath.Ext(name)))
	if base == "" {
		base = "jersey"
	}
	return base + ".jpg"
}

// ensureUniqueFilename appends a counter until the name is free in dir.
func ensureUniqueFilename(dir, filename string) string {
	base := strings.TrimSuffix(filename, ".jpg")
	candidate := filename
	for counter := 2; ; counter++ {
		if _, err := os.Stat(filepath.Join(dir, candidate)); err != nil {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d.jpg", base, counter)
	}
}

// SaveImage processes an upload into the assets directory, writing the
// resized image and its thumbnail under the same filename.
func (a *App) SaveImage(src io.Reader, originalName string) (UploadedImage, error) {
	full, thumb, w, h, err := processImage(src)
	if err != nil {
		return UploadedImage{}, err
	}
	imgDir := filepath.Join(a.Config.AssetsDir, imagesSubdir)
	thumbDir := filepath.Join(a.Config.AssetsDir, thumbnailsSubdir)
	for _, dir := range []string{imgDir, thumbDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return UploadedImage{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	name := ensureUniqueFilename(imgDir, imageFilename(originalName))
	if err := os.WriteFile(filepath.Join(imgDir, name), full, 0o644); err != nil {
		return UploadedImage{}, fmt.Errorf("write image: %w", err)
	}
	if err := os.WriteFile(filepath.Join(thumbDir, name), thumb, 0o644); err != nil {
		return UploadedImage{}, fmt.Errorf("write thumbnail: %w", err)
	}
	settings := a.Settings()
	return UploadedImage{
		Filename:  name,
		URL:       settings.ImageURL(name),
		Thumbnail: settings.ThumbnailURL(name),
		Width:     w,
		Height:    h,
		Size:      len(full),
	}, nil
}

// MirrorSets lists the asset directories copied to object storage, keyed the
// way they are served under /assets.
func (c SiteConfig) MirrorSets() []mirror.Set {
	return []mirror.Set{
		{Dir: filepath.Join(c.AssetsDir, imagesSubdir), Prefix: imagesSubdir},
		{Dir: filepath.Join(c.AssetsDir, thumbnailsSubdir), Prefix: thumbnailsSubdir},
	}
}

// mirrorImage copies a fresh upload to object storage. A failed copy is
// logged; the local files still serve the image.
func (a *App) mirrorImage(ctx context.Context, name string) {
	if a.mirror == nil {
		return
	}
	var files []mirror.File
	for _, set := range a.Config.MirrorSets() {
		files = append(files, mirror.File{Path: filepath.Join(set.Dir, name), Key: a.mirror.Key(set.Prefix, name)})
	}
	if _, err := a.mirror.Upload(ctx, files...); err != nil {
		a.Logger.Warn("image mirror failed", zap.String("filename", name), zap.Error(err))
	}
}

func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return apiError(http.StatusBadRequest, "no image file provided")
	}
	if file.Size > maxUploadSize {
		return apiError(http.StatusBadRequest, "file too large (max 10MB)")
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	img, err := a.SaveImage(src, file.Filename)
	if err != nil {
		return apiError(http.StatusBadRequest, "invalid image: "+err.Error())
	}
	a.Logger.Info("image uploaded", zap.String("filename", img.Filename), zap.Int("size", img.Size))
	a.mirrorImage(c.Request().Context(), img.Filename)
	return c.JSON(http.StatusCreated, map[string]any{"success": true, "image": img})
}
