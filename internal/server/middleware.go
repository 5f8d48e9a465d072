package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/quantmind-br/bomgate/internal/utils"
)

// RequestIDHeader carries the request id on requests and responses
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID assigns an id to every request, reusing a well-formed incoming
// one, and stores a request-scoped logger in the request context
func RequestID(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		ctx := utils.ContextWithLogger(c.Request.Context(), logger.WithRequestID(id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger logs each request after it completes
func RequestLogger(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		event := logger.Info()
		msg := "request"
		if status >= 500 {
			event = logger.Error()
			msg = "request failed"
		} else if status >= 400 {
			event = logger.Warn()
			msg = "client error"
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP())
		if id := c.GetString(requestIDKey); id != "" {
			event = event.Str("request_id", id)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg(msg)
	}
}

// Timeout bounds the request context. Handlers observe cancellation through
// c.Request.Context().
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Decompress inflates request bodies sent with Content-Encoding gzip or
// deflate. The size limit is applied to the inflated stream.
func Decompress() gin.HandlerFunc {
	return func(c *gin.Context) {
		encoding := strings.ToLower(strings.TrimSpace(c.GetHeader("Content-Encoding")))
		if encoding == "" || encoding == "identity" || c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		var (
			reader io.ReadCloser
			err    error
		)
		switch encoding {
		case "gzip", "x-gzip":
			reader, err = gzip.NewReader(c.Request.Body)
		case "deflate":
			reader, err = zlib.NewReader(c.Request.Body)
		default:
			abortJSON(c, http.StatusUnsupportedMediaType, "unsupported content encoding")
			return
		}
		if err != nil {
			abortJSON(c, http.StatusBadRequest, "malformed compressed body")
			return
		}
		defer reader.Close()

		c.Request.Body = reader
		c.Request.Header.Del("Content-Encoding")
		c.Request.Header.Del("Content-Length")
		c.Request.ContentLength = -1
		c.Next()
	}
}

// BodyLimit caps the number of body bytes a handler may read
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": true, "message": message})
}
