package minio

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
)

type mockObjectAPI struct {
	bucketExists bool
	madeBucket   string
	putBucket    string
	putKey       string
	putBody      []byte
	putErr       error
}

func (m *mockObjectAPI) BucketExists(_ context.Context, bucket string) (bool, error) {
	return m.bucketExists, nil
}

func (m *mockObjectAPI) MakeBucket(_ context.Context, bucket string, _ miniogo.MakeBucketOptions) error {
	m.madeBucket = bucket
	return nil
}

func (m *mockObjectAPI) PutObject(_ context.Context, bucket, key string, reader io.Reader, size int64, _ miniogo.PutObjectOptions) (miniogo.UploadInfo, error) {
	if m.putErr != nil {
		return miniogo.UploadInfo{}, m.putErr
	}
	m.putBucket = bucket
	m.putKey = key
	m.putBody, _ = io.ReadAll(reader)
	return miniogo.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func newTestArchiver(api objectAPI) *archiver {
	return &archiver{
		client: api,
		bucket: defaultBucket,
		logger: logging.NewNopLogger(),
		now:    func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) },
	}
}

func TestArchiveWritesDatedJSONObject(t *testing.T) {
	api := &mockObjectAPI{bucketExists: true}
	a := newTestArchiver(api)

	h := &conversation.History{
		ThreadID: "t-42",
		Messages: []conversation.Message{
			{Role: conversation.RoleUser, Content: "우리 가게 단골 분석해줘"},
		},
		Meta: conversation.ThreadMeta{MerchantID: "M000000001"},
	}

	key, err := a.Archive(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "transcripts/2024/06/15/t-42.json", key)
	assert.Equal(t, defaultBucket, api.putBucket)

	var got conversation.History
	require.NoError(t, json.Unmarshal(api.putBody, &got))
	assert.Equal(t, "t-42", got.ThreadID)
	assert.Equal(t, "M000000001", got.Meta.MerchantID)
}

func TestArchiveCreatesMissingBucket(t *testing.T) {
	api := &mockObjectAPI{bucketExists: false}
	a := newTestArchiver(api)

	_, err := a.Archive(context.Background(), &conversation.History{ThreadID: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, defaultBucket, api.madeBucket)
}

func TestArchiveRejectsEmptyThread(t *testing.T) {
	a := newTestArchiver(&mockObjectAPI{bucketExists: true})
	_, err := a.Archive(context.Background(), nil)
	require.Error(t, err)
	_, err = a.Archive(context.Background(), &conversation.History{})
	require.Error(t, err)
}
