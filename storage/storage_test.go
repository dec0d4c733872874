package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	folderID := "f-1"

	key := ObjectKey("u-1", &folderID, "My Holiday Photo.JPG")
	assert.True(t, strings.HasPrefix(key, "uploads/u-1/f-1/"), key)
	assert.True(t, strings.HasSuffix(key, "-my-holiday-photo.jpg"), key)

	rootKey := ObjectKey("u-1", nil, "notes.txt")
	assert.True(t, strings.HasPrefix(rootKey, "uploads/u-1/root/"), rootKey)

	assert.NotEqual(t, ObjectKey("u-1", nil, "a.txt"), ObjectKey("u-1", nil, "a.txt"))
}

func TestObjectKey_UnsluggableName(t *testing.T) {
	key := ObjectKey("u-1", nil, "???.png")
	assert.True(t, strings.HasSuffix(key, "-file.png"), key)
}

func TestThumbnailKey(t *testing.T) {
	key := ThumbnailKey("u-1", nil)
	assert.True(t, strings.HasPrefix(key, "uploads/u-1/root/thumb-"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), key)
}

func TestMemory_PutGetRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Put(ctx, "k", strings.NewReader("hello"), 5, "text/plain"))
	assert.True(t, m.Has("k"))

	rc, err := m.Get(ctx, "k")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, m.Remove(ctx, "k", "missing"))
	assert.False(t, m.Has("k"))

	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemory_SizeMismatch(t *testing.T) {
	m := NewMemory()
	err := m.Put(context.Background(), "k", strings.NewReader("hello"), 3, "text/plain")
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

type fakeS3 struct {
	objects   map[string][]byte
	deleteErr error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3aws.PutObjectInput, _ ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3aws.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3aws.GetObjectInput, _ ...func(*s3aws.Options)) (*s3aws.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3aws.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3aws.DeleteObjectInput, _ ...func(*s3aws.Options)) (*s3aws.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, *in.Key)
	return &s3aws.DeleteObjectOutput{}, nil
}

func TestS3_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: map[string][]byte{}}
	s := NewS3WithClient(client, "bucket")

	require.NoError(t, s.Put(ctx, "a/b.txt", strings.NewReader("data"), 4, "text/plain"))

	rc, err := s.Get(ctx, "a/b.txt")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "data", string(data))

	require.NoError(t, s.Remove(ctx, "a/b.txt"))
	_, err = s.Get(ctx, "a/b.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3_RemoveFailure(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}, deleteErr: errors.New("boom")}
	s := NewS3WithClient(client, "bucket")

	err := s.Remove(context.Background(), "a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
}
