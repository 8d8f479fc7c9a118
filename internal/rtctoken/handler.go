package rtctoken

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearcast/recording-backend/pkg/response"
)

// TokenTTL bounds the credential validity window.
const TokenTTL = time.Hour

// Handler exposes the public token issuance endpoint.
type Handler struct {
	builder *Builder
	appID   string
	logger  *zap.Logger
}

// NewHandler creates the token handler.
func NewHandler(builder *Builder, appID string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{builder: builder, appID: appID, logger: logger}
}

type tokenRequest struct {
	ChannelName string      `json:"channelName"`
	UID         json.Number `json:"uid"`
	Role        string      `json:"role"`
}

// Generate handles POST /token. Responses carry no-cache headers so the
// client always receives a fresh credential.
func (h *Handler) Generate(c *gin.Context) {
	c.Header("Cache-Control", "private, no-cache, no-store, must-revalidate")
	c.Header("Expires", "-1")
	c.Header("Pragma", "no-cache")

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 2, "invalid request body")
		return
	}
	if req.ChannelName == "" || req.UID == "" {
		response.BadRequest(c, 2, "channelName and uid are required")
		return
	}

	role := ParseRole(req.Role)
	token, err := h.builder.RTCToken(req.ChannelName, req.UID.String(), role, TokenTTL)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err), zap.String("channel", req.ChannelName))
		response.Error(c, http.StatusInternalServerError, 0, "failed to generate token")
		return
	}

	roleName := "publisher"
	if role == RoleSubscriber {
		roleName = "subscriber"
	}
	response.OK(c, gin.H{
		"rtcToken":    token,
		"appId":       h.appID,
		"channelName": req.ChannelName,
		"uid":         req.UID,
		"role":        roleName,
		"expiresIn":   int(TokenTTL.Seconds()),
	})
}
