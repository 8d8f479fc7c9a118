package uploads

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearcast/recording-backend/pkg/response"
	"github.com/clearcast/recording-backend/pkg/storage"
)

// ArchiveHandler serves the long-term archive view of a session: the
// audited delivery history with pre-signed S3 download URLs. It exists
// only when both the audit database and the archive bucket are configured.
type ArchiveHandler struct {
	audit  *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewArchiveHandler creates an archive handler.
func NewArchiveHandler(audit *Repository, s3 *storage.S3, logger *zap.Logger) *ArchiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveHandler{audit: audit, s3: s3, logger: logger}
}

type archivedFile struct {
	OriginalName string `json:"originalName"`
	StoredName   string `json:"storedName"`
	Size         int64  `json:"size"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
}

type archivedBatch struct {
	ReceivedAt string         `json:"receivedAt"`
	Files      []archivedFile `json:"files"`
}

// GetBySessionID handles GET /archive/:sid. Unlike the poll endpoint it
// reads the durable audit trail, so it answers even after the correlation
// entry has aged out.
func (h *ArchiveHandler) GetBySessionID(c *gin.Context) {
	sid := c.Param("sid")
	batches, err := h.audit.ListBySessionID(c.Request.Context(), sid)
	if err != nil {
		h.logger.Error("archive lookup failed", zap.Error(err), zap.String("sid", sid))
		response.Error(c, http.StatusInternalServerError, 0, "archive lookup failed")
		return
	}
	if len(batches) == 0 {
		response.NotFound(c, "no archived deliveries for this session")
		return
	}

	out := make([]archivedBatch, 0, len(batches))
	for _, b := range batches {
		ab := archivedBatch{ReceivedAt: b.ReceivedAt.UTC().Format(time.RFC3339)}
		for _, f := range b.Files {
			af := archivedFile{OriginalName: f.OriginalName, StoredName: f.StoredName, Size: f.Size}
			key := storage.ArchiveKey(sid, f.StoredName)
			url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.ArchiveBucket(), key, h.s3.PresignExpire())
			if err != nil {
				h.logger.Warn("presign failed", zap.Error(err), zap.String("key", key))
			} else {
				af.DownloadURL = url
			}
			ab.Files = append(ab.Files, af)
		}
		out = append(out, ab)
	}
	response.OK(c, gin.H{
		"sid":     sid,
		"batches": out,
	})
}
