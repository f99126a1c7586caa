package httpclient

import (
	"fmt"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// DefaultTimeout は上流サービスへのリクエストのデフォルトタイムアウト。
const DefaultTimeout = 30 * time.Second

// hopByHopHeaders はプロキシが転送してはならないヘッダー（RFC 9110 7.6.1）。
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client は上流サービスへリクエストを転送するHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL（末尾の "/" は除去済み）。
	baseURL string
}

// New は新しい転送用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://chatbot:8001"）を指定する。
// timeoutが0以下の場合はDefaultTimeoutを使用する。
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			// リダイレクトは追跡せずに呼び出し元へそのまま返す
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL は接続先サービスのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Forward はrを上流サービスへ転送し、レスポンスを返す。
// パスはr.URL.PathをそのままベースURLに連結する。呼び出し元はレスポンスボディを閉じること。
func (c *Client) Forward(r *http.Request) (*http.Response, error) {
	url := c.baseURL + r.URL.EscapedPath()
	if url == c.baseURL {
		url += "/"
	}
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	body := r.Body
	if r.ContentLength == 0 {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("転送リクエストの作成に失敗: %w", err)
	}
	req.ContentLength = r.ContentLength
	req.Header = r.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	RemoveHopByHopHeaders(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("上流サービスへの転送に失敗: %w", err)
	}
	return resp, nil
}

// RemoveHopByHopHeaders はhからホップバイホップヘッダーと、
// Connectionヘッダーで指定されたヘッダーを取り除く。
func RemoveHopByHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = textproto.TrimString(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}
