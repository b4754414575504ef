package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cloudpublish/internal/shell/channel"
)

// fakeS3 is a path-style S3 endpoint that keeps buckets and objects in memory.
type fakeS3 struct {
	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string][]byte
	creates  int
	failPuts bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	switch {
	case r.Method == http.MethodHead && key == "":
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && key == "":
		f.creates++
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		if f.failPuts {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func setup(t *testing.T) (*fakeS3, channel.StorageKeys) {
	t.Helper()
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, channel.StorageKeys{
		Endpoint:  srv.URL,
		AccessKey: "access",
		SecretKey: "secret",
	}
}

func writePackage(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "web.cspkg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewUploader_RequiresEndpoint(t *testing.T) {
	_, err := NewUploader(channel.StorageKeys{}, Config{}, nil)
	assert.ErrorIs(t, err, ErrEndpointRequired)
}

func TestUploadPackage(t *testing.T) {
	fake, keys := setup(t)
	u, err := NewUploader(keys, Config{}, slog.Default())
	require.NoError(t, err)

	url, err := u.UploadPackage(context.Background(), "web/20260101T000000Z_web.cspkg", writePackage(t, "package-bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, keys.Endpoint+"/deployments/web/20260101T000000Z_web.cspkg"), url)
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Equal(t, 1, fake.creates)
	assert.Equal(t, []byte("package-bytes"), fake.objects["deployments/web/20260101T000000Z_web.cspkg"])
}

func TestUploadPackage_ReusesBucket(t *testing.T) {
	fake, keys := setup(t)
	fake.buckets["releases"] = true

	u, err := NewUploader(keys, Config{Bucket: "releases"}, nil)
	require.NoError(t, err)

	_, err = u.UploadPackage(context.Background(), "a.cspkg", writePackage(t, "x"))
	require.NoError(t, err)
	assert.Equal(t, 0, fake.creates)
	assert.Contains(t, fake.objects, "releases/a.cspkg")
}

func TestUploadPackage_MissingFile(t *testing.T) {
	fake, keys := setup(t)
	u, err := NewUploader(keys, Config{}, nil)
	require.NoError(t, err)

	_, err = u.UploadPackage(context.Background(), "a.cspkg", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 0, fake.creates)
}

func TestUploadPackage_PutFailure(t *testing.T) {
	fake, keys := setup(t)
	fake.failPuts = true
	u, err := NewUploader(keys, Config{}, nil)
	require.NoError(t, err)

	_, err = u.UploadPackage(context.Background(), "a.cspkg", writePackage(t, "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object a.cspkg")
}

func TestNewFactory(t *testing.T) {
	_, keys := setup(t)
	factory := NewFactory(Config{}, nil)

	up, err := factory(context.Background(), keys)
	require.NoError(t, err)
	assert.IsType(t, &Uploader{}, up)

	_, err = factory(context.Background(), channel.StorageKeys{})
	assert.ErrorIs(t, err, ErrEndpointRequired)
}
