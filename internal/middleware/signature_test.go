package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "webhook-secret"

func newSignedRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/upload-webhook", WebhookSignature(secret, nil), func(c *gin.Context) {
		// Body must still be readable after verification.
		body, err := c.GetRawData()
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, string(body))
	})
	return r
}

func signedRequest(secret, body string) *http.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/upload-webhook", strings.NewReader(body))
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, ComputeSignature(secret, http.MethodPost, "/upload-webhook", ts, []byte(body)))
	return req
}

func TestWebhookSignature_ValidSignatureAccepted(t *testing.T) {
	r := newSignedRouter(testSecret)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(testSecret, `{"sid":"abc"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"sid":"abc"}`, w.Body.String())
}

func TestWebhookSignature_TamperedBodyRejected(t *testing.T) {
	r := newSignedRouter(testSecret)

	req := signedRequest(testSecret, `{"sid":"abc"}`)
	req.Body = httptest.NewRequest(http.MethodPost, "/upload-webhook", strings.NewReader(`{"sid":"evil"}`)).Body

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookSignature_WrongSecretRejected(t *testing.T) {
	r := newSignedRouter(testSecret)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("other-secret", `{"sid":"abc"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookSignature_MissingHeadersRejected(t *testing.T) {
	r := newSignedRouter(testSecret)

	req := httptest.NewRequest(http.MethodPost, "/upload-webhook", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookSignature_TimestampBoundToSignature(t *testing.T) {
	r := newSignedRouter(testSecret)

	req := signedRequest(testSecret, "{}")
	req.Header.Set(HeaderTimestamp, "999999")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookSignature_EmptySecretDisablesVerification(t *testing.T) {
	r := newSignedRouter("")

	req := httptest.NewRequest(http.MethodPost, "/upload-webhook", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
