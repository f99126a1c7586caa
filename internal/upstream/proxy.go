package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/lexgate/pkg/httpclient"
	"github.com/nao1215/lexgate/pkg/problem"
)

// corsHeaderPrefix はgatewayが所有するCORSレスポンスヘッダーの接頭辞。
const corsHeaderPrefix = "Access-Control-"

// Proxy はリクエストをチャットボットのバックエンドへ転送するhttp.Handler。
type Proxy struct {
	// client はバックエンドへの転送クライアント。
	client *httpclient.Client
}

// New は新しいProxyを生成する。
// baseURLはスキームとホストを含む絶対URLでなければならない。
func New(baseURL string, timeout time.Duration) (*Proxy, error) {
	if err := validateBaseURL(baseURL); err != nil {
		return nil, err
	}
	return &Proxy{client: httpclient.New(baseURL, timeout)}, nil
}

// validateBaseURL はバックエンドのベースURLを検証する。
func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("上流サービスのURLが不正です: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("上流サービスのURLのスキームはhttpまたはhttpsである必要があります: %q", baseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("上流サービスのURLにホストがありません: %q", baseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("上流サービスのURLにクエリやフラグメントは指定できません: %q", baseURL)
	}
	return nil
}

// BaseURL は転送先のベースURLを返す。
func (p *Proxy) BaseURL() string {
	return p.client.BaseURL()
}

// ServeHTTP はrをバックエンドへ転送し、レスポンスをそのまま書き戻す。
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := p.client.Forward(r)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// クライアントが切断済みのため応答は届かない
			log.Printf("クライアント切断により転送を中断: path=%s", r.URL.Path)
			return
		}
		traceID := problem.Write(w, r, http.StatusBadGateway, "チャットボットサービスとの通信に失敗しました")
		log.Printf("プロキシエラー: traceId=%s, base=%s, path=%s, error=%v", traceID, p.client.BaseURL(), r.URL.Path, err)
		return
	}
	defer resp.Body.Close()

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// ステータス送信後のため、ログに残すことしかできない
		log.Printf("レスポンスの転送に失敗: path=%s, error=%v", r.URL.Path, err)
	}
}

// copyResponseHeaders はバックエンドのレスポンスヘッダーをdstへ追加する。
// ホップバイホップヘッダーとCORSヘッダーは除外する。
func copyResponseHeaders(dst, src http.Header) {
	h := src.Clone()
	httpclient.RemoveHopByHopHeaders(h)
	for key, values := range h {
		if strings.HasPrefix(http.CanonicalHeaderKey(key), corsHeaderPrefix) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
