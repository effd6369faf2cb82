package s3blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(context.Background(), ClientConfig{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Bucket:         "snaps",
		AccessKey:      "test-key",
		SecretKey:      "test-secret",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	return client
}

func TestHealthOK(t *testing.T) {
	var gotMethod, gotPath string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.Health(context.Background()))
	assert.Equal(t, http.MethodHead, gotMethod)
	assert.Equal(t, "/snaps", gotPath)
}

func TestHealthMissingBucket(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	err := client.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snaps")
}

func TestWriterPut(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody []byte
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
		}
		w.WriteHeader(http.StatusOK)
	}))

	writer := NewWriter(client)
	payload := `{"data":{"items":[]}}`
	require.NoError(t, writer.Put(context.Background(), "listings/2026/08/31/k.json", []byte(payload), "application/json"))

	assert.Equal(t, "/snaps/listings/2026/08/31/k.json", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	// The SDK may frame the body for checksum trailers, so containment is the
	// stable assertion.
	assert.Contains(t, string(gotBody), payload)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio.local:9000", normaliseEndpoint("https://minio.local:9000", false))
	assert.Equal(t, "https://minio.local:9000", normaliseEndpoint("minio.local:9000", true))
	assert.Equal(t, "http://minio.local:9000", normaliseEndpoint("minio.local:9000", false))
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")

	_, err = New(context.Background(), ClientConfig{Bucket: "snaps"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region")
}
