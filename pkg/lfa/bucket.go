// Package lfa uploads generated data files to the Large File Annex, an
// S3-compatible object store consumed by downstream systems.
package lfa

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// MakeBucketName returns the Large File Annex bucket name for an S3
// instance such as "summit" or "tucson".
func MakeBucketName(s3instance string) string {
	return "rubinobs-lfa-" + s3instance
}

// MakeKey returns the object key for a data file:
//
//	<salName>:<salIndexName>/<generator>/<yyyy>/<mm>/<dd>/<generator>_<timestamp><suffix>
//
// date is the exposure begin time and determines the directory layout.
func MakeKey(salName, salIndexName, generator string, date time.Time, suffix string) string {
	return fmt.Sprintf("%s:%s/%s/%04d/%02d/%02d/%s_%s%s",
		salName, salIndexName, generator,
		date.Year(), date.Month(), date.Day(),
		generator, date.Format("2006-01-02T15:04:05.000"), suffix)
}

// Bucket is one Large File Annex bucket. In mock mode objects are
// written below a local directory instead of a remote endpoint, for
// tests and simulation.
type Bucket struct {
	Name string

	endpoint string
	secure   bool
	client   *minio.Client
	mockDir  string
	logger   log.FieldLogger
}

// New connects to the S3 endpoint using AWS-style environment
// credentials (AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY).
func New(endpoint string, secure bool, name string, logger log.FieldLogger) (*Bucket, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewEnvAWS(),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client for %s: %v", endpoint, err)
	}
	return &Bucket{
		Name:     name,
		endpoint: endpoint,
		secure:   secure,
		client:   client,
		logger:   logger.WithField("component", "lfa"),
	}, nil
}

// NewMock returns a Bucket that stores objects under dir/name.
func NewMock(dir, name string, logger log.FieldLogger) *Bucket {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Bucket{
		Name:    name,
		mockDir: dir,
		logger:  logger.WithField("component", "lfa"),
	}
}

// Mock reports whether the bucket stores objects locally.
func (b *Bucket) Mock() bool { return b.mockDir != "" }

// Upload stores one object under key.
func (b *Bucket) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	if b.Mock() {
		path := filepath.Join(b.mockDir, b.Name, key)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create mock bucket directory: %v", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create mock object %s: %v", key, err)
		}
		defer f.Close()
		if _, err := io.Copy(f, r); err != nil {
			return fmt.Errorf("failed to write mock object %s: %v", key, err)
		}
		b.logger.Debugf("Stored mock object %s/%s", b.Name, key)
		return nil
	}

	_, err := b.client.PutObject(ctx, b.Name, key, r, size, minio.PutObjectOptions{
		ContentType: "application/fits",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to bucket %s: %v", key, b.Name, err)
	}
	b.logger.Infof("Uploaded %s/%s", b.Name, key)
	return nil
}

// URL returns the public URL of an uploaded object.
func (b *Bucket) URL(key string) string {
	if b.Mock() {
		return "file://" + filepath.Join(b.mockDir, b.Name, key)
	}
	scheme := "http"
	if b.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, b.endpoint, b.Name, key)
}
