package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// wildcard は全てのオリジン・メソッド・ヘッダーを許可する指定。
const wildcard = "*"

// CORSPolicy はクロスオリジンリクエストの許可ポリシー。
// 起動時に一度だけ構築し、以降は変更しない。
type CORSPolicy struct {
	// AllowedOrigins は許可するオリジンの一覧。"*" を含む場合は全オリジンを許可する。
	AllowedOrigins []string
	// AllowCredentials はクレデンシャル付きリクエストを許可するかどうか。
	AllowCredentials bool
	// AllowMethods はプリフライトで許可するHTTPメソッド。"*" で全メソッド。
	AllowMethods []string
	// AllowHeaders はプリフライトで許可するリクエストヘッダー。"*" で全ヘッダー。
	AllowHeaders []string
	// MaxAge はプリフライト結果のキャッシュ秒数。0以下の場合はヘッダーを付与しない。
	MaxAge int
}

// DefaultCORSPolicy はフロントエンド開発サーバー（http://localhost:3000）のみを許可するポリシーを返す。
func DefaultCORSPolicy() CORSPolicy {
	return CORSPolicy{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowMethods:     []string{wildcard},
		AllowHeaders:     []string{wildcard},
		MaxAge:           600,
	}
}

// CORSDecision はあるリクエストに対するCORS判定結果。
// 空文字列のフィールドは対応するヘッダーを付与しないことを表す。
type CORSDecision struct {
	// Preflight はリクエストをプリフライトとしてここで応答すべきかどうか。
	Preflight bool
	// AllowOrigin はAccess-Control-Allow-Originに設定する値。
	AllowOrigin string
	// AllowCredentials はAccess-Control-Allow-Credentialsを付与するかどうか。
	AllowCredentials bool
	// AllowMethods はAccess-Control-Allow-Methodsに設定する値。
	AllowMethods string
	// AllowHeaders はAccess-Control-Allow-Headersに設定する値。
	AllowHeaders string
	// MaxAge はAccess-Control-Max-Ageに設定する値。
	MaxAge string
	// VaryOrigin はVary: Originを付与するかどうか。
	VaryOrigin bool
}

// clone はスライスを共有しないポリシーのコピーを返す。
func (p CORSPolicy) clone() CORSPolicy {
	p.AllowedOrigins = slices.Clone(p.AllowedOrigins)
	p.AllowMethods = slices.Clone(p.AllowMethods)
	p.AllowHeaders = slices.Clone(p.AllowHeaders)
	return p
}

// Validate はポリシーを検証する。
// 全オリジン許可とクレデンシャル許可の組み合わせはエラーとなる。
func (p CORSPolicy) Validate() error {
	var errs []error
	if p.AllowCredentials && slices.Contains(p.AllowedOrigins, wildcard) {
		errs = append(errs, errors.New("クレデンシャルを許可する場合、許可オリジンに * は指定できません"))
	}
	for _, o := range p.AllowedOrigins {
		if o == wildcard {
			continue
		}
		if u, err := url.Parse(o); err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
			errs = append(errs, fmt.Errorf("許可オリジンが不正です（scheme://host[:port]の形式で指定）: %q", o))
		}
	}
	if p.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("CORSのMax-Ageは0以上である必要があります: %d", p.MaxAge))
	}
	return errors.Join(errs...)
}

// allowsOrigin はoriginが許可リストに含まれるかを判定する。
func (p CORSPolicy) allowsOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, o := range p.AllowedOrigins {
		if o == wildcard || o == origin {
			return true
		}
	}
	return false
}

// Evaluate はリクエストのOrigin、メソッド、Access-Control-Request-Methodの値からCORS判定を行う。
// ネットワークに依存しない純粋な関数で、ヘッダーの書き込みはApplyが担う。
//
// OriginとAccess-Control-Request-Methodを伴うOPTIONSリクエストをプリフライトとして扱う。
// それ以外のOPTIONSリクエストは通常のリクエストとしてルーティングされる。
// 許可ヘッダー（オリジン・クレデンシャル・メソッド・ヘッダー・Max-Age）は、
// オリジンが許可リストに含まれる場合にのみ付与する。
func (p CORSPolicy) Evaluate(origin, method, requestMethod string) CORSDecision {
	d := CORSDecision{
		Preflight:  method == http.MethodOptions && origin != "" && requestMethod != "",
		VaryOrigin: origin != "",
	}
	if !p.allowsOrigin(origin) {
		return d
	}

	// クレデンシャル付きリクエストでは "*" が使えないため、常にオリジンを反射する
	d.AllowOrigin = origin
	d.AllowCredentials = p.AllowCredentials

	if d.Preflight {
		d.AllowMethods = joinList(p.AllowMethods)
		d.AllowHeaders = joinList(p.AllowHeaders)
		if p.MaxAge > 0 {
			d.MaxAge = strconv.Itoa(p.MaxAge)
		}
	}
	return d
}

// Apply は判定結果をレスポンスヘッダーに書き込む。
func (d CORSDecision) Apply(h http.Header) {
	if d.VaryOrigin {
		h.Add("Vary", "Origin")
	}
	if d.AllowOrigin != "" {
		h.Set("Access-Control-Allow-Origin", d.AllowOrigin)
		if d.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
	}
	if d.AllowMethods != "" {
		h.Set("Access-Control-Allow-Methods", d.AllowMethods)
	}
	if d.AllowHeaders != "" {
		h.Set("Access-Control-Allow-Headers", d.AllowHeaders)
	}
	if d.MaxAge != "" {
		h.Set("Access-Control-Max-Age", d.MaxAge)
	}
}

// joinList はヘッダー値用にリストを連結する。"*" を含む場合は "*" のみを返す。
func joinList(values []string) string {
	if slices.Contains(values, wildcard) {
		return wildcard
	}
	return strings.Join(values, ", ")
}

// CORS はポリシーに従ってクロスオリジンリクエストを処理するGinミドルウェアを返す。
// プリフライトリクエストはオリジンの許可に関わらず後続のハンドラに渡さず、200で応答する。
// 許可されていないオリジンでもリクエスト自体は処理する（ブロックはブラウザが行う）。
func CORS(policy CORSPolicy) gin.HandlerFunc {
	p := policy.clone()

	return func(c *gin.Context) {
		d := p.Evaluate(c.GetHeader("Origin"), c.Request.Method, c.GetHeader("Access-Control-Request-Method"))
		d.Apply(c.Writer.Header())

		if d.Preflight {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
