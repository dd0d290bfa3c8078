package s3blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// RunUploader stores the files of one run under <prefix>/<run id>/.
type RunUploader struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewRunUploader wraps the client in a multipart-capable uploader.
func NewRunUploader(c *Client, prefix string) *RunUploader {
	up := manager.NewUploader(c.S3(), func(u *manager.Uploader) {
		u.PartSize = minPartSize
	})
	return &RunUploader{uploader: up, bucket: c.Bucket(), prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a run file.
func (u *RunUploader) Key(runID uuid.UUID, name string) string {
	return path.Join(u.prefix, runID.String(), filepath.Base(name))
}

// UploadFiles uploads each local file and returns the keys written, in order.
func (u *RunUploader) UploadFiles(ctx context.Context, runID uuid.UUID, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, local := range files {
		key := u.Key(runID, local)
		if err := u.uploadFile(ctx, key, local); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (u *RunUploader) uploadFile(ctx context.Context, key, local string) error {
	file, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("s3blob: open %s: %w", local, err)
	}
	defer file.Close()

	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType(local)),
	})
	if err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", key, err)
	}
	return nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".jsonl":
		return "application/x-ndjson"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
