package middleware

import (
	"errors"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/lexgate/pkg/problem"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にトレースID付きでスタックトレースをログに出力し、
// problem+json形式の500エラーを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				// http.ErrAbortHandlerは回復せずnet/httpに処理させる
				if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(r)
				}
				c.Abort()
				if c.Writer.Written() {
					// ステータスを送信済みの場合はレスポンスを差し替えられない
					log.Printf("[PANIC] %s %s: %v (レスポンス送信後)\n%s", c.Request.Method, c.Request.URL.Path, r, debug.Stack())
					return
				}
				traceID := problem.Write(c.Writer, c.Request, http.StatusInternalServerError, "内部サーバーエラーが発生しました")
				log.Printf("[PANIC] traceId=%s %s %s: %v\n%s", traceID, c.Request.Method, c.Request.URL.Path, r, debug.Stack())
			}
		}()
		c.Next()
	}
}
