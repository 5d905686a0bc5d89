package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/TheMichaelB/savesync/internal/config"
	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/models"
)

// S3Store implements the remote store on an S3 bucket. Slot metadata rides as
// object metadata so Stat maps to HeadObject. S3 reports no account quota, so
// usage is summed over the prefix against the configured ceiling.
type S3Store struct {
	client     *s3.Client
	bucket     string
	prefix     string
	quotaBytes int64
	gate       *Gate
	logger     *events.Logger
}

const (
	s3MetaChecksum = "save-checksum"
	s3MetaModified = "save-modified"
	s3MetaPlayer   = "save-player"
	s3MetaFavorite = "save-favorite"
)

// NewS3Store creates an S3-backed remote store.
func NewS3Store(ctx context.Context, cfg *config.APIConfig, gate *Gate, logger *events.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Store{
		client:     s3.NewFromConfig(awsCfg),
		bucket:     cfg.S3Bucket,
		prefix:     cfg.S3Prefix,
		quotaBytes: cfg.S3QuotaBytes,
		gate:       gate,
		logger:     logger.WithField("component", "s3_store"),
	}, nil
}

// Read returns the payload and metadata for a slot.
func (s *S3Store) Read(ctx context.Context, slot int) ([]byte, *models.SlotMetadata, error) {
	if err := s.gate.Check(); err != nil {
		return nil, nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(slot)),
	})
	if err != nil {
		return nil, nil, s.mapError(slot, err)
	}
	defer result.Body.Close()

	payload, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read object body: %v", models.ErrRemoteUnavailable, err)
	}

	meta, err := metaFromS3(slot, result.Metadata, int64(len(payload)))
	if err != nil {
		return nil, nil, err
	}

	return payload, meta, nil
}

// Stat returns metadata without transferring the payload.
func (s *S3Store) Stat(ctx context.Context, slot int) (*models.SlotMetadata, error) {
	if err := s.gate.Check(); err != nil {
		return nil, err
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(slot)),
	})
	if err != nil {
		return nil, s.mapError(slot, err)
	}

	return metaFromS3(slot, result.Metadata, aws.ToInt64(result.ContentLength))
}

// Write persists a payload tagged with the given metadata.
func (s *S3Store) Write(ctx context.Context, slot int, payload []byte, meta *models.SlotMetadata) error {
	if err := s.gate.Check(); err != nil {
		return err
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}

	player, err := json.Marshal(meta.Player)
	if err != nil {
		return fmt.Errorf("marshal player summary: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(slot)),
		Body:   bytes.NewReader(payload),
		Metadata: map[string]string{
			s3MetaChecksum: meta.Checksum,
			s3MetaModified: meta.LastModified.UTC().Format(time.RFC3339Nano),
			s3MetaPlayer:   string(player),
			s3MetaFavorite: strconv.FormatBool(meta.Favorite),
		},
	})
	if err != nil {
		return s.mapError(slot, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"slot": slot,
		"size": len(payload),
	}).Debug("Uploaded slot to S3")

	return nil
}

// Delete removes a slot's cloud copy.
func (s *S3Store) Delete(ctx context.Context, slot int) error {
	if err := s.gate.Check(); err != nil {
		return err
	}

	// DeleteObject succeeds on missing keys, so probe first to honor the
	// not-found contract.
	if _, err := s.Stat(ctx, slot); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(slot)),
	})
	if err != nil {
		return s.mapError(slot, err)
	}

	return nil
}

// List returns slot numbers holding a cloud copy.
func (s *S3Store) List(ctx context.Context) ([]int, error) {
	if err := s.gate.Check(); err != nil {
		return nil, err
	}

	var slots []int
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.mapError(-1, err)
		}
		for _, obj := range page.Contents {
			if slot, ok := s.slotFromKey(aws.ToString(obj.Key)); ok {
				slots = append(slots, slot)
			}
		}
	}

	return slots, nil
}

// Quota sums object sizes under the prefix against the configured ceiling.
func (s *S3Store) Quota(ctx context.Context) (int64, int64, error) {
	if err := s.gate.Check(); err != nil {
		return 0, 0, err
	}

	var used int64
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, 0, s.mapError(-1, err)
		}
		for _, obj := range page.Contents {
			used += aws.ToInt64(obj.Size)
		}
	}

	return used, s.quotaBytes, nil
}

// Close releases resources.
func (s *S3Store) Close() error { return nil }

func (s *S3Store) key(slot int) string {
	return path.Join(s.prefix, fmt.Sprintf("slot-%d.sav", slot))
}

func (s *S3Store) slotFromKey(key string) (int, bool) {
	base := path.Base(key)
	var slot int
	if _, err := fmt.Sscanf(base, "slot-%d.sav", &slot); err != nil {
		return 0, false
	}
	return slot, true
}

func (s *S3Store) mapError(slot int, err error) error {
	var noKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return models.ErrSlotNotFound
	}
	if errors.Is(err, models.ErrSlotNotFound) {
		return err
	}
	if slot >= 0 {
		return fmt.Errorf("%w: slot %d: %v", models.ErrRemoteUnavailable, slot, err)
	}
	return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
}

// metaFromS3 decodes object metadata into slot metadata.
func metaFromS3(slot int, objMeta map[string]string, size int64) (*models.SlotMetadata, error) {
	checksum := objMeta[s3MetaChecksum]
	if checksum == "" {
		return nil, errors.New("object missing checksum metadata")
	}

	modified, err := time.Parse(time.RFC3339Nano, objMeta[s3MetaModified])
	if err != nil {
		return nil, fmt.Errorf("parse modified metadata: %w", err)
	}

	meta := &models.SlotMetadata{
		SlotNumber:   slot,
		Checksum:     checksum,
		LastModified: modified,
		SizeBytes:    size,
		Favorite:     objMeta[s3MetaFavorite] == "true",
	}

	if player := objMeta[s3MetaPlayer]; player != "" {
		if err := json.Unmarshal([]byte(player), &meta.Player); err != nil {
			return nil, fmt.Errorf("parse player metadata: %w", err)
		}
	}

	return meta, nil
}
