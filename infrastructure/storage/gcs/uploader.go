package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Uploader copies a local CSV into the configured bucket. The object name is
// the file's base name, so the same report date always maps to the same
// object and re-runs overwrite rather than accumulate.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

type BucketUploader struct {
	bucket string
	client *storage.Client
}

func NewBucketUploader(ctx context.Context, bucket string, opts ...option.ClientOption) (*BucketUploader, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &BucketUploader{
		bucket: bucket,
		client: client,
	}, nil
}

// Upload streams the file into the bucket and returns its gs:// URI.
func (u *BucketUploader) Upload(ctx context.Context, localPath string) (string, error) {
	object := filepath.Base(localPath)

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer file.Close()

	writer := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "text/csv"

	if _, err := io.Copy(writer, file); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("uploading %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finishing upload of %s: %w", object, err)
	}

	uri := fmt.Sprintf("gs://%s/%s", u.bucket, object)
	logrus.WithFields(logrus.Fields{
		"local_path": localPath,
		"uri":        uri,
	}).Info("CSV uploaded to object storage")

	return uri, nil
}

func (u *BucketUploader) Close() error {
	return u.client.Close()
}
