package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderKeyRequestID はリクエストIDを返すHTTPヘッダーキー。
const HeaderKeyRequestID = "X-Request-ID"

// contextKeyRequestID はGinコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID = "request_id"

// maxRequestIDLength はクライアントから受け取るリクエストIDの最大長。
const maxRequestIDLength = 128

// RequestID はリクエストIDをレスポンスヘッダーに付与するGinミドルウェアを返す。
// クライアントがX-Request-IDを送った場合はその値を、無い場合はUUIDを生成して使う。
// 転送先へのリクエストには手を加えない。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderKeyRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.New().String()
		}
		c.Set(contextKeyRequestID, id)
		c.Header(HeaderKeyRequestID, id)
		c.Next()
	}
}

// GetRequestID はGinコンテキストからリクエストIDを取得する。
// RequestIDミドルウェアが事前に適用されている必要がある。
func GetRequestID(c *gin.Context) string {
	id, _ := c.Get(contextKeyRequestID)
	if s, ok := id.(string); ok {
		return s
	}
	return ""
}
