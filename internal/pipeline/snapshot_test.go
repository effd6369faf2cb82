package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobWriter struct {
	putKeys       []string
	multipartKeys []string
	contentTypes  []string
}

func (f *fakeBlobWriter) Put(ctx context.Context, path string, data []byte, contentType string) error {
	f.putKeys = append(f.putKeys, path)
	f.contentTypes = append(f.contentTypes, contentType)
	return nil
}

func (f *fakeBlobWriter) PutMultipart(ctx context.Context, path string, data []byte, contentType string, partSize int64) error {
	f.multipartKeys = append(f.multipartKeys, path)
	f.contentTypes = append(f.contentTypes, contentType)
	return nil
}

func TestSnapshotterStoresUnderDatePartitionedKey(t *testing.T) {
	writer := &fakeBlobWriter{}
	s := NewSnapshotter(writer, slog.Default())

	require.NoError(t, s.Store(context.Background(), []byte(`{"data":{}}`)))

	require.Len(t, writer.putKeys, 1)
	key := writer.putKeys[0]
	assert.True(t, strings.HasPrefix(key, "listings/"), key)
	assert.True(t, strings.HasSuffix(key, ".json"), key)
	assert.Equal(t, "application/json", writer.contentTypes[0])
}

func TestSnapshotterSkipsEmptyPayload(t *testing.T) {
	writer := &fakeBlobWriter{}
	s := NewSnapshotter(writer, slog.Default())

	require.NoError(t, s.Store(context.Background(), nil))
	assert.Empty(t, writer.putKeys)
	assert.Empty(t, writer.multipartKeys)
}

func TestSnapshotterRoutesLargePayloadsThroughMultipart(t *testing.T) {
	writer := &fakeBlobWriter{}
	s := NewSnapshotter(writer, slog.Default())

	large := bytes.Repeat([]byte("x"), multipartThreshold)
	require.NoError(t, s.Store(context.Background(), large))

	assert.Empty(t, writer.putKeys)
	require.Len(t, writer.multipartKeys, 1)
	assert.Equal(t, "application/json", writer.contentTypes[0])
}
