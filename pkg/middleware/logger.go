package middleware

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// AccessLog はリクエストIDを含むアクセスログをoutに出力するGinミドルウェアを返す。
// outがnilの場合はgin.DefaultWriterに出力する。
// RequestIDミドルウェアより後に適用すること。
func AccessLog(out io.Writer) gin.HandlerFunc {
	if out == nil {
		out = gin.DefaultWriter
	}
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: formatAccessLog,
		Output:    out,
	})
}

// formatAccessLog はアクセスログ1行分を整形する。
func formatAccessLog(p gin.LogFormatterParams) string {
	requestID, _ := p.Keys[contextKeyRequestID].(string)
	return fmt.Sprintf("[GATEWAY] %s | %3d | %13v | %15s | %-7s %#v | request_id=%s\n",
		p.TimeStamp.Format(time.RFC3339),
		p.StatusCode,
		p.Latency,
		p.ClientIP,
		p.Method,
		p.Path,
		requestID,
	)
}
