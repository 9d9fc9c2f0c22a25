// Package middleware はgin用の共通ミドルウェアを提供します。
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const (
	// RequestIDHeader はリクエストIDを運ぶヘッダー名です。
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey はgin.Context上のリクエストIDのキーです。
	RequestIDKey = "request_id"
	maxRequestID = 128
)

// RequestID はリクエストごとにULIDを発行し、レスポンスヘッダーとコンテキストに設定します。
// 受信ヘッダーに妥当なIDがあればそれを引き継ぎます。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestID {
			id = ulid.Make().String()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID はコンテキストに設定されたリクエストIDを返します。
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// Logger はリクエストの完了をslogで記録します。
func Logger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", GetRequestID(c),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= 500:
			l.Error("request", attrs...)
		case status >= 400:
			l.Warn("request", attrs...)
		default:
			l.Info("request", attrs...)
		}
	}
}
