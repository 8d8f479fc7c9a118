package recording

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearcast/recording-backend/internal/agora"
	"github.com/clearcast/recording-backend/pkg/response"
)

// Handler handles the recording HTTP endpoints.
type Handler struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewHandler creates a recording handler.
func NewHandler(orchestrator *Orchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orchestrator: orchestrator, logger: logger}
}

type startRequest struct {
	ChannelName   string      `json:"channelName"`
	UID           json.Number `json:"uid"`
	RecordingMode string      `json:"recordingMode"`
	InitiatorRole string      `json:"initiatorRole"`
}

// Start handles POST /recording/start.
func (h *Handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 2, "invalid request body")
		return
	}
	if req.ChannelName == "" || req.UID == "" {
		response.BadRequest(c, 2, "Missing channelName or uid")
		return
	}
	role := defaultRole(req.InitiatorRole)

	session, err := h.orchestrator.Start(c.Request.Context(), StartParams{
		ChannelName:   req.ChannelName,
		UID:           req.UID.String(),
		Mode:          req.RecordingMode,
		InitiatorRole: role,
	})
	if err != nil {
		h.writeError(c, err, "start recording")
		return
	}

	response.OK(c, gin.H{
		"resourceId":  session.ResourceID,
		"sid":         session.SessionID,
		"channelName": session.ChannelName,
		"uid":         req.UID,
		"initiatedBy": session.InitiatorRole,
	})
}

type stopRequest struct {
	ResourceID    string      `json:"resourceId"`
	SID           string      `json:"sid"`
	ChannelName   string      `json:"channelName"`
	UID           json.Number `json:"uid"`
	RecordingMode string      `json:"recordingMode"`
	AsyncStop     bool        `json:"asyncStop"`
	InitiatorRole string      `json:"initiatorRole"`
}

// Stop handles POST /recording/stop. The channel is freed immediately;
// when files have not arrived yet the response degrades to a poll contract
// instead of blocking on the provider's upload pipeline.
func (h *Handler) Stop(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 2, "invalid request body")
		return
	}
	if req.ResourceID == "" || req.SID == "" {
		response.BadRequest(c, 2, "Missing resourceId or sid")
		return
	}
	role := defaultRole(req.InitiatorRole)

	result, err := h.orchestrator.Stop(c.Request.Context(), StopParams{
		ResourceID:    req.ResourceID,
		SessionID:     req.SID,
		ChannelName:   req.ChannelName,
		UID:           req.UID.String(),
		Mode:          req.RecordingMode,
		AsyncStop:     req.AsyncStop,
		InitiatorRole: role,
	})
	if err != nil {
		h.writeError(c, err, "stop recording")
		return
	}

	body := gin.H{
		"resourceId":      req.ResourceID,
		"sid":             req.SID,
		"status":          "stopped",
		"stoppedAt":       result.StoppedAt.Format(time.RFC3339),
		"stoppedBy":       role,
		"files":           result.Files,
		"uploadingStatus": result.UploadingStatus,
	}
	if result.PollEndpoint != "" {
		body["pollEndpoint"] = result.PollEndpoint
	}
	response.OK(c, body)
}

type queryRequest struct {
	ResourceID    string `json:"resourceId"`
	SID           string `json:"sid"`
	RecordingMode string `json:"recordingMode"`
}

// Query handles POST /recording/query. Side-effect free.
func (h *Handler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 2, "invalid request body")
		return
	}
	if req.ResourceID == "" || req.SID == "" {
		response.BadRequest(c, 2, "Missing resourceId or sid")
		return
	}

	result, err := h.orchestrator.Query(c.Request.Context(), QueryParams{
		ResourceID: req.ResourceID,
		SessionID:  req.SID,
		Mode:       req.RecordingMode,
	})
	if err != nil {
		h.writeError(c, err, "query recording")
		return
	}

	response.OK(c, gin.H{
		"resourceId": req.ResourceID,
		"sid":        req.SID,
		"status":     result.Provider.Status,
		"files":      result.Files,
	})
}

type layoutRequest struct {
	ResourceID    string      `json:"resourceId"`
	SID           string      `json:"sid"`
	ChannelName   string      `json:"channelName"`
	UID           json.Number `json:"uid"`
	RecordingMode string      `json:"recordingMode"`
	LayoutConfig  struct {
		Layout          int    `json:"layout"`
		BackgroundColor string `json:"backgroundColor"`
	} `json:"layoutConfig"`
	InitiatorRole string `json:"initiatorRole"`
}

// UpdateLayout handles POST /recording/update-layout (composite mode only).
func (h *Handler) UpdateLayout(c *gin.Context) {
	var req layoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 2, "invalid request body")
		return
	}
	if req.ResourceID == "" || req.SID == "" {
		response.BadRequest(c, 2, "Missing resourceId or sid")
		return
	}
	role := defaultRole(req.InitiatorRole)

	err := h.orchestrator.UpdateLayout(c.Request.Context(), LayoutParams{
		ResourceID:      req.ResourceID,
		SessionID:       req.SID,
		ChannelName:     req.ChannelName,
		UID:             req.UID.String(),
		Mode:            req.RecordingMode,
		Layout:          req.LayoutConfig.Layout,
		BackgroundColor: req.LayoutConfig.BackgroundColor,
		InitiatorRole:   role,
	})
	if err != nil {
		h.writeError(c, err, "update recording layout")
		return
	}

	response.OK(c, gin.H{
		"resourceId": req.ResourceID,
		"sid":        req.SID,
		"message":    "Layout updated",
		"updatedBy":  role,
	})
}

// Sessions handles GET /sessions: a snapshot of active recordings.
func (h *Handler) Sessions(c *gin.Context) {
	sessions := h.orchestrator.ActiveSessions()
	response.OK(c, gin.H{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// writeError maps orchestrator errors onto the error taxonomy: 403 before
// any side effect, 409 on a busy channel, 500-class for provider
// rejections carrying the catalogue-translated provider code.
func (h *Handler) writeError(c *gin.Context, err error, op string) {
	var apiErr *agora.APIError
	switch {
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "Only HOST can "+op)
	case errors.Is(err, ErrChannelBusy):
		response.Conflict(c, 7, "Recording already in progress for this channel")
	case errors.As(err, &apiErr):
		h.logger.Error("provider rejected "+op, zap.Int("code", apiErr.Code), zap.Error(err))
		response.Upstream(c, apiErr.Code, apiErr.Message())
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Upstream(c, 501, err.Error())
	}
}

func defaultRole(role string) string {
	if role == "" {
		return RoleHost
	}
	return role
}
