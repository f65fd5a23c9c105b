// Package storage moves files between local disk and S3 compatible
// object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client wraps an S3 client with file oriented helpers. Uploads go
// through the transfer manager so large segments are sent in parts.
type Client struct {
	s3       *s3.Client
	uploader *manager.Uploader
}

// New builds a Client on top of an S3 client.
func New(client *s3.Client) *Client {
	return &Client{
		s3:       client,
		uploader: manager.NewUploader(client),
	}
}

// Download streams an object into destPath, creating the file.
func (c *Client) Download(ctx context.Context, bucket, key, destPath string) error {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(file, out.Body); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return file.Close()
}

// UploadFile puts a local file at the given key with a content type
// derived from its extension.
func (c *Client) UploadFile(ctx context.Context, bucket, key, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(ContentType(path)),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// ContentType maps HLS output files to their media types. Players refuse
// playlists served as octet streams, so the mapping matters.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}
