// Package minio archives conversation transcripts as one JSON object per
// thread. Archiving runs on demand, outside the turn path.
package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

const defaultBucket = "advisor-transcripts"

// objectAPI is the subset of the minio client the archiver uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts miniogo.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
}

// Archiver stores thread transcripts.
type Archiver interface {
	Archive(ctx context.Context, h *conversation.History) (string, error)
}

type archiver struct {
	client objectAPI
	bucket string
	logger logging.Logger
	now    func() time.Time
}

// NewArchiver builds the minio-backed transcript archiver.
func NewArchiver(cfg config.MinioConfig, logger logging.Logger) (Archiver, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint not configured")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}
	return &archiver{
		client: client,
		bucket: bucket,
		logger: logger.Named("transcript_archive"),
		now:    time.Now,
	}, nil
}

// Archive writes the history as a dated JSON object and returns its key.
func (a *archiver) Archive(ctx context.Context, h *conversation.History) (string, error) {
	if h == nil || h.ThreadID == "" {
		return "", errors.New(errors.ErrCodeTranscriptExport, "history thread id must not be empty")
	}

	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}

	raw, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeTranscriptExport, "failed to marshal transcript")
	}

	key := fmt.Sprintf("transcripts/%s/%s.json", a.now().Format("2006/01/02"), h.ThreadID)
	_, err = a.client.PutObject(ctx, a.bucket, key,
		bytes.NewReader(raw), int64(len(raw)),
		miniogo.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeTranscriptExport, "failed to upload transcript")
	}

	a.logger.Info("transcript archived",
		logging.String("thread_id", h.ThreadID),
		logging.String("object", key))
	return key, nil
}

func (a *archiver) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeTranscriptExport, "bucket check failed")
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, miniogo.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeTranscriptExport, "bucket creation failed")
	}
	return nil
}
