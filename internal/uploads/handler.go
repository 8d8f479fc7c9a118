package uploads

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearcast/recording-backend/pkg/response"
)

// Correlation hint headers used when the body carries no identifiers.
const (
	HeaderSessionID  = "x-recording-sid"
	HeaderResourceID = "x-recording-resource-id"
)

// Handler handles the provider upload webhook and the poll endpoint.
type Handler struct {
	ingestor *Ingestor
	store    Store
	logger   *zap.Logger
}

// NewHandler creates an uploads handler.
func NewHandler(ingestor *Ingestor, store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ingestor: ingestor, store: store, logger: logger}
}

// webhookBody is the JSON form of the provider callback. The file list is
// kept raw because some providers deliver it as a JSON-encoded string
// instead of a structured array.
type webhookBody struct {
	SID        string          `json:"sid"`
	ResourceID string          `json:"resourceId"`
	FileList   json.RawMessage `json:"fileList"`
}

// Webhook handles POST /upload-webhook. The callback may carry inline
// multipart file parts, a JSON body of remote-file descriptors, or both.
// It acknowledges 200 once local persistence is complete.
func (h *Handler) Webhook(c *gin.Context) {
	var d Delivery

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		form, err := c.MultipartForm()
		if err != nil {
			response.BadRequest(c, 2, "invalid multipart body")
			return
		}
		d.SessionID = firstValue(form.Value, "sid")
		d.ResourceID = firstValue(form.Value, "resourceId")
		if raw := firstValue(form.Value, "fileList"); raw != "" {
			d.Remote = h.parseFileList(json.RawMessage(raw))
		}
		for _, headers := range form.File {
			for _, fh := range headers {
				fh := fh
				d.Inline = append(d.Inline, IncomingFile{
					Name: fh.Filename,
					Open: func() (io.ReadCloser, error) { return fh.Open() },
				})
			}
		}
	} else {
		var body webhookBody
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, 2, "invalid request body")
			return
		}
		d.SessionID = body.SID
		d.ResourceID = body.ResourceID
		d.Remote = h.parseFileList(body.FileList)
	}

	if d.SessionID == "" {
		d.SessionID = c.GetHeader(HeaderSessionID)
	}
	if d.ResourceID == "" {
		d.ResourceID = c.GetHeader(HeaderResourceID)
	}

	batch, err := h.ingestor.Ingest(c.Request.Context(), d)
	if err != nil {
		h.logger.Error("webhook ingest failed", zap.Error(err), zap.String("sid", d.SessionID))
		response.Error(c, http.StatusInternalServerError, 0, "failed to persist delivery")
		return
	}

	received := 0
	if batch != nil {
		received = len(batch.Files)
	}
	response.OK(c, gin.H{
		"sid":      d.SessionID,
		"received": received,
	})
}

// GetBySessionID handles GET /recording/:sid, the poll endpoint clients
// retry after a pending stop response. 404 until the delivery arrives.
func (h *Handler) GetBySessionID(c *gin.Context) {
	sid := c.Param("sid")
	batch, err := h.store.GetBySessionID(c.Request.Context(), sid)
	if err == ErrNotFound {
		response.NotFound(c, "files not delivered yet")
		return
	}
	if err != nil {
		h.logger.Error("store lookup failed", zap.Error(err), zap.String("sid", sid))
		response.Error(c, http.StatusInternalServerError, 0, "store lookup failed")
		return
	}
	response.OK(c, gin.H{
		"sid":        sid,
		"files":      batch.Files,
		"receivedAt": batch.ReceivedAt,
	})
}

// parseFileList decodes a remote-file descriptor list, tolerating the list
// being delivered as a JSON-encoded string rather than a structured value.
func (h *Handler) parseFileList(raw json.RawMessage) []RemoteFile {
	if len(raw) == 0 {
		return nil
	}
	var files []RemoteFile
	if err := json.Unmarshal(raw, &files); err == nil {
		return files
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if err := json.Unmarshal([]byte(encoded), &files); err == nil {
			return files
		}
	}
	h.logger.Warn("unparseable fileList", zap.ByteString("raw", raw))
	return nil
}

func firstValue(values map[string][]string, key string) string {
	if v, ok := values[key]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}
