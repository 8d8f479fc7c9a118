package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearcast/recording-backend/pkg/response"
)

// Signature headers on signed provider callbacks.
const (
	HeaderSignature = "x-signature"
	HeaderTimestamp = "x-timestamp"
)

// WebhookSignature verifies an HMAC-SHA256 signature computed over
// METHOD + URL + timestamp + raw body. The raw body is captured verbatim
// before any JSON parsing and restored for downstream handlers. Rejected
// requests are never processed. An empty secret disables verification.
func WebhookSignature(secret string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		signature := c.GetHeader(HeaderSignature)
		timestamp := c.GetHeader(HeaderTimestamp)
		if signature == "" || timestamp == "" {
			response.Unauthorized(c, "missing signature headers")
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Unauthorized(c, "unreadable request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		expected := ComputeSignature(secret, c.Request.Method, c.Request.URL.RequestURI(), timestamp, body)
		if !hmac.Equal([]byte(expected), []byte(signature)) {
			logger.Warn("webhook signature mismatch",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()))
			response.Unauthorized(c, "invalid signature")
			c.Abort()
			return
		}

		c.Next()
	}
}

// ComputeSignature returns the hex HMAC-SHA256 over method+url+timestamp+body.
func ComputeSignature(secret, method, url, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method))
	mac.Write([]byte(url))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
