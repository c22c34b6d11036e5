/*
Package storage handles chat attachments in S3-compatible object storage.

Files never pass through the server. The client asks for a presigned upload
URL, pushes the bytes directly, and sends the resulting object key inside an
image or file message; receivers exchange the key for a presigned download
URL the same way.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/randx"
)

// ErrObjectNotFound is returned when a key has no object behind it.
var ErrObjectNotFound = errors.New("object not found")

// ServiceConfig holds the settings required to reach the object store.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Service is the file storage contract used by the file handlers.
type Service interface {
	// PresignUpload generates a pre-signed URL for uploading a file.
	PresignUpload(ctx context.Context, key, mimeType string, fileSize int64, duration time.Duration) (string, error)

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the object with the given key.
	Delete(ctx context.Context, key string) error

	// ObjectMetadata returns the stored content type and length for a key,
	// or ErrObjectNotFound when no object exists under it.
	ObjectMetadata(ctx context.Context, key string) (map[string]string, error)
}

// NewService initializes the S3-compatible implementation.
func NewService(cfg ServiceConfig) (Service, error) {
	return newS3Client(cfg)
}

// ObjectKey builds the storage key for a new upload. Keys are namespaced by
// room so ownership checks reduce to a prefix comparison.
func ObjectKey(roomID, fileName string) string {
	return fmt.Sprintf("%s/%s_%s", roomID, randx.FileID(), fileName)
}
