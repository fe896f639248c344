package media

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memS3 is an in-memory S3API. pageSize forces pagination in ListObjectsV2.
type memS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
}

func newMemS3() *memS3 {
	return &memS3{objects: map[string][]byte{}, pageSize: 2}
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := aws.ToString(in.Bucket) + "/"
	var keys []string
	for k := range m.objects {
		key := strings.TrimPrefix(k, bucket)
		if strings.HasPrefix(k, bucket) && strings.HasPrefix(key, aws.ToString(in.Prefix)) && key > aws.ToString(in.ContinuationToken) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > m.pageSize {
		keys = keys[:m.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (m *memS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, obj := range in.Delete.Objects {
		delete(m.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3ChunkStore_RoundTrip(t *testing.T) {
	api := newMemS3()
	store := NewS3ChunkStore(api, "videos", "chunks")
	ctx := context.Background()

	for i, part := range []string{"ab", "cd", "ef", "g"} {
		require.NoError(t, store.PutChunk(ctx, "vid-1", i, []byte(part)))
	}
	require.NoError(t, store.PutChunk(ctx, "vid-2", 0, []byte("other")))

	assert.Contains(t, api.objects, "videos/chunks/vid-1/00000002.chunk")

	data, err := store.GetChunk(ctx, "vid-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(data))

	_, err = store.GetChunk(ctx, "vid-1", 9)
	assert.ErrorIs(t, err, ErrChunkNotFound)

	require.NoError(t, store.DeleteChunks(ctx, "vid-1"))
	for i := 0; i < 4; i++ {
		_, err := store.GetChunk(ctx, "vid-1", i)
		assert.ErrorIs(t, err, ErrChunkNotFound)
	}

	data, err = store.GetChunk(ctx, "vid-2", 0)
	require.NoError(t, err)
	assert.Equal(t, "other", string(data))
}

func TestFSChunkStore_RejectsNonUUID(t *testing.T) {
	store, err := NewFSChunkStore(t.TempDir())
	require.NoError(t, err)

	err = store.PutChunk(context.Background(), "../escape", 0, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
