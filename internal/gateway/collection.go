package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteCollection はGatewayのプレフィックス配下にマウントされるルートの集合。
// Mountに渡されるルーターグループはプレフィックスをルートとしており、
// コレクションはその配下にのみルートを登録する。
type RouteCollection interface {
	// Mount はrgにルートを登録する。
	Mount(rg *gin.RouterGroup)
}

// CollectionFunc は関数をRouteCollectionとして扱うためのアダプタ。
type CollectionFunc func(rg *gin.RouterGroup)

// Mount はf(rg)を呼び出す。
func (f CollectionFunc) Mount(rg *gin.RouterGroup) {
	f(rg)
}

// HandlerCollection は任意のhttp.HandlerをRouteCollectionとしてマウントする。
// プレフィックス配下の全メソッド・全パスをhに渡し、hからはプレフィックスを
// 取り除いたパスが見える（/api/chat → /chat）。
func HandlerCollection(h http.Handler) RouteCollection {
	return CollectionFunc(func(rg *gin.RouterGroup) {
		stripped := http.StripPrefix(rg.BasePath(), h)
		rg.Any("/*path", gin.WrapH(stripped))
	})
}
