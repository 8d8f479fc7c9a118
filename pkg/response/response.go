package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the error envelope returned for every failed request.
// ErrorCode is drawn from the provider error catalogue where applicable.
type ErrorBody struct {
	Success      bool   `json:"success"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Timestamp    string `json:"timestamp"`
}

// Error sends an error envelope with the given HTTP status and catalogue code.
func Error(c *gin.Context, status, code int, msg string) {
	c.JSON(status, ErrorBody{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: msg,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}

// BadRequest sends 400 with a parameter-error code.
func BadRequest(c *gin.Context, code int, msg string) {
	Error(c, http.StatusBadRequest, code, msg)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) {
	Error(c, http.StatusUnauthorized, 0, msg)
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, msg string) {
	Error(c, http.StatusForbidden, 0, msg)
}

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) {
	Error(c, http.StatusNotFound, 0, msg)
}

// Conflict sends 409.
func Conflict(c *gin.Context, code int, msg string) {
	Error(c, http.StatusConflict, code, msg)
}

// Upstream sends 500 carrying the provider's own error code.
func Upstream(c *gin.Context, code int, msg string) {
	Error(c, http.StatusInternalServerError, code, msg)
}

// OK sends a 200 JSON response. Handlers compose their own success shapes;
// this only guarantees the success flag and timestamp are present.
func OK(c *gin.Context, data gin.H) {
	body := gin.H{"success": true, "timestamp": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}
