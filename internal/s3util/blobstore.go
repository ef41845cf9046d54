// Package s3util provides the S3-backed blob store for post media. Blobs
// are keyed {gmbId}/{mediaId}, matching the media rows one to one.
package s3util

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultPresignTTL bounds how long a temporary media link stays valid.
// Long enough for the platform to fetch every attachment during creation.
const DefaultPresignTTL = time.Hour

// MediaKey builds the blob key for a media row.
func MediaKey(gmbID string, mediaID int64) string {
	return fmt.Sprintf("%s/%d", gmbID, mediaID)
}

// BlobStore wraps the S3 client, presigner, and bucket for media blobs.
type BlobStore struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	ttl       time.Duration
}

// NewBlobStore creates a BlobStore. A zero ttl falls back to
// DefaultPresignTTL.
func NewBlobStore(client *s3.Client, presigner *s3.PresignClient, bucket string, ttl time.Duration) *BlobStore {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &BlobStore{client: client, presigner: presigner, bucket: bucket, ttl: ttl}
}

// PresignGet creates a time-limited read-only URL for a blob. The URL is
// handed to the publishing platform as a fetchable source and never
// persisted.
func (b *BlobStore) PresignGet(ctx context.Context, key string) (string, error) {
	result, err := b.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = b.ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject %s: %w", key, err)
	}
	return result.URL, nil
}

// Put stores a blob body, overwriting any existing object under the key so
// a re-delivered invocation can safely rewrite it.
func (b *BlobStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &b.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}
	log.Debug().Str("key", key).Int("bytes", len(body)).Str("contentType", contentType).Msg("Blob stored")
	return nil
}

// DeleteAll deletes the given blobs concurrently. Any single failure fails
// the batch; an orphaned blob is a storage leak worth alerting on, so the
// error is surfaced rather than swallowed.
func (b *BlobStore) DeleteAll(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: &b.bucket, Key: &key,
			}); err != nil {
				return fmt.Errorf("delete blob %s: %w", key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Debug().Int("count", len(keys)).Msg("Old media blobs deleted")
	return nil
}
