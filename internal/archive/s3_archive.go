// Package archive copies a document's saved-context outputs to S3-compatible storage
// and restores them.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nbcache/internal/output"
)

var ErrDisabled = errors.New("archive is not configured")

const transferLimit = 4

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether the configuration names an endpoint and credentials.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != ""
}

type S3Archive struct {
	client     *minio.Client
	bucketName string
	region     string
	layout     output.Layout
	logger     *zap.Logger

	initOnce sync.Once
	initErr  error
}

func NewS3Archive(cfg Config, layout output.Layout, logger *zap.Logger) (*S3Archive, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	if layout == nil {
		return nil, fmt.Errorf("layout is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = "nbcache-outputs"
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Archive{
		client:     client,
		bucketName: bucket,
		region:     region,
		layout:     layout,
		logger:     logger,
	}, nil
}

func (a *S3Archive) ensureBucket(ctx context.Context) error {
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucketName)
		if err != nil {
			a.initErr = err
			return
		}
		if exists {
			return
		}
		a.initErr = a.client.MakeBucket(ctx, a.bucketName, minio.MakeBucketOptions{Region: a.region})
	})
	return a.initErr
}

// Push uploads every file of the document's saved context and returns how many were sent.
func (a *S3Archive) Push(ctx context.Context, docPath, docID string) (int, error) {
	if !output.ValidSegment(docID) {
		return 0, fmt.Errorf("invalid doc_id: %q", docID)
	}
	if err := a.ensureBucket(ctx); err != nil {
		return 0, fmt.Errorf("ensure bucket: %w", err)
	}
	root := a.layout.CacheFolder(docPath, docID, output.SavedContextID)

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		if os.IsNotExist(walkErr) {
			return 0, nil
		}
		return 0, walkErr
	}

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transferLimit)
	for _, path := range files {
		g.Go(func() error {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			key := objectKey(docID, rel)
			if _, err := a.client.FPutObject(gctx, a.bucketName, key, path, minio.PutObjectOptions{
				ContentType: "application/octet-stream",
			}); err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			sent.Add(1)
			return nil
		})
	}
	err := g.Wait()
	a.logger.Info("archive push",
		zap.String("doc_id", docID),
		zap.Int64("files", sent.Load()),
		zap.Error(err))
	return int(sent.Load()), err
}

// Pull downloads the document's archived outputs into its saved context.
func (a *S3Archive) Pull(ctx context.Context, docPath, docID string) (int, error) {
	if !output.ValidSegment(docID) {
		return 0, fmt.Errorf("invalid doc_id: %q", docID)
	}
	if err := a.ensureBucket(ctx); err != nil {
		return 0, fmt.Errorf("ensure bucket: %w", err)
	}
	root := a.layout.CacheFolder(docPath, docID, output.SavedContextID)
	prefix := docID + "/"

	var keys []string
	for obj := range a.client.ListObjects(ctx, a.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return 0, obj.Err
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		keys = append(keys, obj.Key)
	}

	var got atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transferLimit)
	for _, key := range keys {
		rel, ok := relativeKey(prefix, key)
		if !ok {
			a.logger.Warn("skip archived object", zap.String("key", key))
			continue
		}
		g.Go(func() error {
			if err := a.client.FGetObject(gctx, a.bucketName, key, filepath.Join(root, rel), minio.GetObjectOptions{}); err != nil {
				return fmt.Errorf("download %s: %w", key, err)
			}
			got.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(got.Load()), err
}

func objectKey(docID, rel string) string {
	return docID + "/" + strings.TrimLeft(filepath.ToSlash(rel), "/")
}

// relativeKey strips prefix from an object key and rejects keys escaping the folder.
func relativeKey(prefix, key string) (string, bool) {
	rel := strings.TrimPrefix(key, prefix)
	if rel == key || rel == "" {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if !output.ValidSegment(seg) {
			return "", false
		}
	}
	return filepath.FromSlash(rel), true
}
