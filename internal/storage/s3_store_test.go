package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchstacker/server/internal/models"
)

type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	puts     []*s3.PutObjectInput
	pageSize int
	listErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), pageSize: 2}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

// ListObjectsV2 pages through keys in sorted order, pageSize keys at a time.
func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
				break
			}
		}
	}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(time.Unix(1700000000, 0)),
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func TestS3Store_PutAndGet(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	store := NewS3StoreWithClient(client, "images")

	err := store.Put(ctx, "1700000000000.png", bytes.NewReader([]byte("png")), PutOptions{
		ContentType:  "image/png",
		StorageClass: "GLACIER_IR",
		Size:         3,
	})
	require.NoError(t, err)

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "images", aws.ToString(put.Bucket))
	assert.Equal(t, "image/png", aws.ToString(put.ContentType))
	assert.Equal(t, types.StorageClassGlacierIr, put.StorageClass)
	assert.Equal(t, int64(3), aws.ToInt64(put.ContentLength))

	rc, err := store.Get(ctx, "1700000000000.png")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestS3Store_PutWithoutStorageClass(t *testing.T) {
	client := newFakeS3()
	store := NewS3StoreWithClient(client, "images")

	require.NoError(t, store.Put(context.Background(), "viewer/images.json", bytes.NewReader([]byte("[]")), PutOptions{ContentType: "application/json"}))
	assert.Empty(t, client.puts[0].StorageClass)
	assert.Nil(t, client.puts[0].ContentLength)
}

func TestS3Store_GetMissing(t *testing.T) {
	store := NewS3StoreWithClient(newFakeS3(), "images")

	_, err := store.Get(context.Background(), "nope.png")
	assert.ErrorIs(t, err, models.ErrObjectNotFound)
}

func TestS3Store_ListPaginates(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	for _, k := range []string{"c.png", "a.png", "viewer/images.json", "b.png", "d.png"} {
		client.objects[k] = []byte("x")
	}
	store := NewS3StoreWithClient(client, "images")

	objects, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png", "c.png", "d.png", "viewer/images.json"}, Keys(objects))
	assert.Equal(t, int64(1), objects[0].Size)
	assert.Equal(t, int64(1700000000), objects[0].ModTime.Unix())
}

func TestS3Store_ListError(t *testing.T) {
	client := newFakeS3()
	client.listErr = errors.New("access denied")
	store := NewS3StoreWithClient(client, "images")

	_, err := store.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestS3Store_ExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	client.objects["a.png"] = []byte("x")
	store := NewS3StoreWithClient(client, "images")

	exists, err := store.Exists(ctx, "a.png")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "a.png"))

	exists, err = store.Exists(ctx, "a.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestS3Store_RejectsBadKeys(t *testing.T) {
	store := NewS3StoreWithClient(newFakeS3(), "images")

	err := store.Put(context.Background(), "../escape.png", bytes.NewReader(nil), PutOptions{})
	assert.ErrorIs(t, err, models.ErrPathTraversal)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(aws.Config{}, S3Options{})
	assert.Error(t, err)
}
