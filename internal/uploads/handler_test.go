package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newWebhookRouter(t *testing.T) (*gin.Engine, *MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore(0)
	t.Cleanup(store.Close)
	files, err := NewFileStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	h := NewHandler(NewIngestor(store, files, zap.NewNop()), store, zap.NewNop())

	r := gin.New()
	r.POST("/upload-webhook", h.Webhook)
	r.GET("/recording/:sid", h.GetBySessionID)
	return r, store
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWebhook_MultipartInlineFiles(t *testing.T) {
	r, store := newWebhookRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sid", "sid-mp"))
	require.NoError(t, mw.WriteField("resourceId", "rid-mp"))
	part, err := mw.CreateFormFile("file", "recording.mp4")
	require.NoError(t, err)
	_, _ = part.Write([]byte("mp4 bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-webhook", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "sid-mp", body["sid"])
	assert.Equal(t, float64(1), body["received"])

	batch, err := store.GetBySessionID(context.Background(), "sid-mp")
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)
	assert.Equal(t, "recording.mp4", batch.Files[0].OriginalName)
}

func TestWebhook_JSONRemoteFileList(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("remote"))
	}))
	defer fileSrv.Close()

	r, store := newWebhookRouter(t)

	payload := `{"sid":"sid-js","resourceId":"rid-js","fileList":[{"fileName":"a.mp4","fileUrl":"` + fileSrv.URL + `/a.mp4"}]}`
	req := httptest.NewRequest(http.MethodPost, "/upload-webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	batch, err := store.GetBySessionID(context.Background(), "sid-js")
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)
	assert.Equal(t, "a.mp4", batch.Files[0].OriginalName)
	assert.Equal(t, fileSrv.URL+"/a.mp4", batch.Files[0].SourceURL)
}

func TestWebhook_StringEncodedFileList(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("remote"))
	}))
	defer fileSrv.Close()

	r, store := newWebhookRouter(t)

	// Some callbacks double-encode the list as a JSON string.
	inner, _ := json.Marshal([]RemoteFile{{FileName: "b.mp4", URL: fileSrv.URL + "/b.mp4"}})
	outer, _ := json.Marshal(map[string]any{"sid": "sid-str", "fileList": string(inner)})

	req := httptest.NewRequest(http.MethodPost, "/upload-webhook", bytes.NewReader(outer))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	batch, err := store.GetBySessionID(context.Background(), "sid-str")
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)
	assert.Equal(t, "b.mp4", batch.Files[0].OriginalName)
}

func TestWebhook_HeaderFallbackIdentifiers(t *testing.T) {
	r, store := newWebhookRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "headers.mp4")
	require.NoError(t, err)
	_, _ = part.Write([]byte("x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-webhook", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(HeaderSessionID, "sid-hdr")
	req.Header.Set(HeaderResourceID, "rid-hdr")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	_, err = store.GetBySessionID(context.Background(), "sid-hdr")
	assert.NoError(t, err)
	_, err = store.GetByResourceID(context.Background(), "rid-hdr")
	assert.NoError(t, err)
}

func TestWebhook_MetadataOnlyAcknowledged(t *testing.T) {
	r, store := newWebhookRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/upload-webhook",
		strings.NewReader(`{"sid":"sid-meta","resourceId":"rid-meta"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["received"])

	_, err := store.GetBySessionID(context.Background(), "sid-meta")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPoll_NotFoundUntilDelivery(t *testing.T) {
	r, store := newWebhookRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/recording/sid-poll", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, store.Put(context.Background(), Batch{
		SessionID:  "sid-poll",
		Files:      []FileRecord{{OriginalName: "a.mp4", PublicURL: "/files/a.mp4"}},
		ReceivedAt: time.Now().UTC(),
	}))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recording/sid-poll", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "sid-poll", body["sid"])
	files, ok := body["files"].([]any)
	require.True(t, ok)
	assert.Len(t, files, 1)
}
