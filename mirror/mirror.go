// Package mirror copies jersey images and thumbnails to S3-compatible
// object storage, so a CDN or a second server can serve the assets.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	cacheControl       = "public, max-age=31536000"
)

// ErrNotConfigured is returned by New when no bucket is set.
var ErrNotConfigured = errors.New("mirror: bucket is not configured")

// Uploader is the part of manager.Uploader the mirror needs.
type Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Config locates the bucket. Endpoint is set for MinIO and other
// S3-compatible services and switches to path-style addressing.
type Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	Prefix        string
}

// Set is a local directory mirrored under a key prefix.
type Set struct {
	Dir    string
	Prefix string
}

// File is one local file and its object key.
type File struct {
	Path string
	Key  string
}

// Result summarizes a mirror run.
type Result struct {
	Uploaded int
	Skipped  int
	Bytes    int64
	Keys     []string
}

// Mirror uploads files to one bucket.
type Mirror struct {
	up          Uploader
	bucket      string
	prefix      string
	publicBase  string
	concurrency int
	since       time.Time
	log         *zap.Logger
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Mirror) { m.log = log }
}

// WithConcurrency bounds the number of parallel uploads.
func WithConcurrency(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithSince skips files not modified after t.
func WithSince(t time.Time) Option {
	return func(m *Mirror) { m.since = t }
}

// New builds a Mirror backed by the AWS SDK.
func New(ctx context.Context, cfg Config, opts ...Option) (*Mirror, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("mirror: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithUploader(manager.NewUploader(client), cfg, opts...), nil
}

// NewWithUploader builds a Mirror over an existing uploader.
func NewWithUploader(up Uploader, cfg Config, opts ...Option) *Mirror {
	m := &Mirror{
		up:          up,
		bucket:      cfg.Bucket,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		publicBase:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		concurrency: defaultConcurrency,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key returns the object key of name within a set prefix.
func (m *Mirror) Key(setPrefix, name string) string {
	return path.Join(m.prefix, strings.Trim(setPrefix, "/"), filepath.ToSlash(name))
}

// URL returns the public URL of key, or "" without a public base.
func (m *Mirror) URL(key string) string {
	if m.publicBase == "" {
		return ""
	}
	return m.publicBase + "/" + key
}

// Sync uploads every regular file of each set. Missing directories are
// skipped.
func (m *Mirror) Sync(ctx context.Context, sets ...Set) (Result, error) {
	var files []File
	var res Result
	for _, set := range sets {
		err := filepath.WalkDir(set.Dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && p == set.Dir {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			if !m.since.IsZero() {
				info, err := d.Info()
				if err != nil {
					return err
				}
				if !info.ModTime().After(m.since) {
					res.Skipped++
					return nil
				}
			}
			rel, err := filepath.Rel(set.Dir, p)
			if err != nil {
				return err
			}
			files = append(files, File{Path: p, Key: m.Key(set.Prefix, rel)})
			return nil
		})
		if err != nil {
			return res, fmt.Errorf("mirror: walk %s: %w", set.Dir, err)
		}
	}
	up, err := m.Upload(ctx, files...)
	up.Skipped += res.Skipped
	return up, err
}

// Upload sends files in parallel. The first failure cancels the rest.
func (m *Mirror) Upload(ctx context.Context, files ...File) (Result, error) {
	var (
		mu  sync.Mutex
		res Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, f := range files {
		g.Go(func() error {
			n, err := m.put(gctx, f)
			if err != nil {
				return err
			}
			mu.Lock()
			res.Uploaded++
			res.Bytes += n
			res.Keys = append(res.Keys, f.Key)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	m.log.Info("mirror finished",
		zap.String("bucket", m.bucket),
		zap.Int("uploaded", res.Uploaded),
		zap.Int64("bytes", res.Bytes),
		zap.Error(err),
	)
	return res, err
}

func (m *Mirror) put(ctx context.Context, f File) (int64, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return 0, fmt.Errorf("mirror: open %s: %w", f.Path, err)
	}
	defer fh.Close()
	info, err := fh.Stat()
	if err != nil {
		return 0, fmt.Errorf("mirror: stat %s: %w", f.Path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(f.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = m.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(m.bucket),
		Key:          aws.String(f.Key),
		Body:         fh,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return 0, fmt.Errorf("mirror: upload %s to %s: %w", f.Key, m.bucket, err)
	}
	m.log.Debug("uploaded", zap.String("key", f.Key), zap.Int64("bytes", info.Size()))
	return info.Size(), nil
}
