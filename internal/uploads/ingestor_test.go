package uploads

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clearcast/recording-backend/pkg/queue"
)

func newTestIngestor(t *testing.T) (*Ingestor, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(0)
	t.Cleanup(store.Close)
	files, err := NewFileStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	return NewIngestor(store, files, zap.NewNop()), store
}

func inlinePart(name, content string) IncomingFile {
	return IncomingFile{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func TestIngest_InlineFiles(t *testing.T) {
	ing, store := newTestIngestor(t)
	ctx := context.Background()

	batch, err := ing.Ingest(ctx, Delivery{
		SessionID:  "sid-1",
		ResourceID: "rid-1",
		Inline: []IncomingFile{
			inlinePart("recording.mp4", "video bytes"),
			inlinePart("playlist.m3u8", "#EXTM3U"),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Len(t, batch.Files, 2)

	rec := batch.Files[0]
	assert.Equal(t, "recording.mp4", rec.OriginalName)
	assert.Contains(t, rec.StoredName, "recording.mp4")
	assert.Equal(t, int64(len("video bytes")), rec.Size)
	assert.Equal(t, "http://localhost:8080/files/"+rec.StoredName, rec.PublicURL)

	// Content really is on disk before Ingest returned.
	data, err := os.ReadFile(rec.Location)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(data))

	// Committed under both identifiers.
	got, err := store.GetBySessionID(ctx, "sid-1")
	require.NoError(t, err)
	assert.Len(t, got.Files, 2)
	_, err = store.GetByResourceID(ctx, "rid-1")
	assert.NoError(t, err)
}

func TestIngest_RemoteDescriptors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.mp4":
			_, _ = w.Write([]byte("remote content"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ing, store := newTestIngestor(t)
	ctx := context.Background()

	batch, err := ing.Ingest(ctx, Delivery{
		SessionID: "sid-2",
		Remote: []RemoteFile{
			{FileName: "session.mp4", URL: srv.URL + "/ok.mp4"},
			{FileName: "gone.mp4", URL: srv.URL + "/missing.mp4"}, // skipped, not fatal
			{FileName: "no-url.mp4"},                              // skipped
		},
	})
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Len(t, batch.Files, 1)

	rec := batch.Files[0]
	assert.Equal(t, "session.mp4", rec.OriginalName)
	assert.Equal(t, srv.URL+"/ok.mp4", rec.SourceURL)
	assert.Equal(t, int64(len("remote content")), rec.Size)

	data, err := os.ReadFile(rec.Location)
	require.NoError(t, err)
	assert.Equal(t, "remote content", string(data))

	got, err := store.GetBySessionID(ctx, "sid-2")
	require.NoError(t, err)
	assert.Len(t, got.Files, 1)
}

func TestIngest_MetadataOnlyDeliveryWritesNothing(t *testing.T) {
	ing, store := newTestIngestor(t)
	ctx := context.Background()

	batch, err := ing.Ingest(ctx, Delivery{SessionID: "sid-3", ResourceID: "rid-3"})
	require.NoError(t, err)
	assert.Nil(t, batch)

	_, err = store.GetBySessionID(ctx, "sid-3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIngest_AllFilesFailingYieldsNoBatch(t *testing.T) {
	ing, store := newTestIngestor(t)
	ctx := context.Background()

	batch, err := ing.Ingest(ctx, Delivery{
		SessionID: "sid-4",
		Inline: []IncomingFile{{
			Name: "broken.mp4",
			Open: func() (io.ReadCloser, error) { return nil, io.ErrUnexpectedEOF },
		}},
	})
	require.NoError(t, err)
	assert.Nil(t, batch)

	_, err = store.GetBySessionID(ctx, "sid-4")
	assert.ErrorIs(t, err, ErrNotFound)
}

type captureQueue struct {
	payloads []queue.ArchivePayload
}

func (q *captureQueue) EnqueueArchive(_ context.Context, p queue.ArchivePayload) error {
	q.payloads = append(q.payloads, p)
	return nil
}

func TestIngest_EnqueuesArchiveJobs(t *testing.T) {
	ing, _ := newTestIngestor(t)
	q := &captureQueue{}
	ing.SetArchiveQueue(q)

	batch, err := ing.Ingest(context.Background(), Delivery{
		SessionID: "sid-5",
		Inline:    []IncomingFile{inlinePart("a.mp4", "x"), inlinePart("b.mp4", "y")},
	})
	require.NoError(t, err)
	require.NotNil(t, batch)

	require.Len(t, q.payloads, 2)
	assert.Equal(t, "sid-5", q.payloads[0].SessionID)
	assert.Equal(t, batch.Files[0].StoredName, q.payloads[0].StoredName)
	assert.Equal(t, batch.Files[0].Location, q.payloads[0].Location)
}

func TestFileStore_SanitizesHostileNames(t *testing.T) {
	files, err := NewFileStore(t.TempDir(), "http://localhost")
	require.NoError(t, err)

	stored := files.StoredName("../../etc/passwd")
	assert.NotContains(t, stored, "/")
	assert.NotContains(t, stored, "..")
	assert.Contains(t, stored, "passwd")

	second := files.StoredName("../../etc/passwd")
	assert.NotEqual(t, stored, second)
}
