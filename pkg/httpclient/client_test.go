package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// RawQuery はクエリ文字列。
	RawQuery string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// newRecordingServer は受け取ったリクエストをreceivedに記録するテストサーバーを生成する。
func newRecordingServer(t *testing.T, received *testRequest, status int, respBody string) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Method = r.Method
		received.Path = r.URL.Path
		received.RawQuery = r.URL.RawQuery
		received.Body, _ = io.ReadAll(r.Body)
		received.Headers = r.Header

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(ts.Close)
	return ts
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8001", 5*time.Second)
		if client == nil {
			t.Fatal("New()がnilを返した")
		}
		if client.BaseURL() != "http://localhost:8001" {
			t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), "http://localhost:8001")
		}
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
	})

	t.Run("タイムアウト未指定の場合30秒に設定されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8001", 0)
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})

	t.Run("ベースURL末尾のスラッシュが除去されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8001/", 0)
		if client.BaseURL() != "http://localhost:8001" {
			t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), "http://localhost:8001")
		}
	})
}

// TestForward はForward関数を検証する。
func TestForward(t *testing.T) {
	t.Parallel()

	t.Run("メソッド・パス・クエリ・ボディ・ヘッダーがそのまま転送されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusCreated, `{"reply":"hello"}`)

		in := httptest.NewRequest(http.MethodPost, "/chat?lang=ne", strings.NewReader(`{"session_id":"s1","message":"hi"}`))
		in.Header.Set("Content-Type", "application/json")
		in.Header.Set("Authorization", "Bearer token")
		in.Header.Set("X-Custom", "kept")

		resp, err := New(ts.URL, 0).Forward(in)
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		defer resp.Body.Close()

		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/chat" {
			t.Errorf("Path = %q, want %q", received.Path, "/chat")
		}
		if received.RawQuery != "lang=ne" {
			t.Errorf("RawQuery = %q, want %q", received.RawQuery, "lang=ne")
		}
		if string(received.Body) != `{"session_id":"s1","message":"hi"}` {
			t.Errorf("Body = %q", received.Body)
		}
		for key, want := range map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer token",
			"X-Custom":      "kept",
		} {
			if got := received.Headers.Get(key); got != want {
				t.Errorf("%s = %q, want %q", key, got, want)
			}
		}

		if resp.StatusCode != http.StatusCreated {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != `{"reply":"hello"}` {
			t.Errorf("レスポンスボディ = %q, want %q", body, `{"reply":"hello"}`)
		}
	})

	t.Run("ホップバイホップヘッダーは転送されないこと", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusOK, `{}`)

		in := httptest.NewRequest(http.MethodGet, "/health", nil)
		in.Header.Set("Connection", "X-Drop-Me")
		in.Header.Set("X-Drop-Me", "secret")
		in.Header.Set("Proxy-Authorization", "Basic abc")
		in.Header.Set("X-Keep-Me", "value")

		resp, err := New(ts.URL, 0).Forward(in)
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if got := received.Headers.Get("X-Drop-Me"); got != "" {
			t.Errorf("X-Drop-Me = %q, want empty string", got)
		}
		if got := received.Headers.Get("Proxy-Authorization"); got != "" {
			t.Errorf("Proxy-Authorization = %q, want empty string", got)
		}
		if got := received.Headers.Get("X-Keep-Me"); got != "value" {
			t.Errorf("X-Keep-Me = %q, want %q", got, "value")
		}
	})

	t.Run("上流のエラーステータスはエラーにならずそのまま返ること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusUnprocessableEntity, `{"detail":"invalid"}`)

		in := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{}`))
		resp, err := New(ts.URL, 0).Forward(in)
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
		}
	})

	t.Run("上流のリダイレクトは追跡せずにそのまま返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
		}))
		t.Cleanup(ts.Close)

		in := httptest.NewRequest(http.MethodGet, "/moved", nil)
		resp, err := New(ts.URL, 0).Forward(in)
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusFound {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
		}
		if got := resp.Header.Get("Location"); got != "/elsewhere" {
			t.Errorf("Location = %q, want %q", got, "/elsewhere")
		}
	})

	t.Run("空のパスはルートとして転送されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusOK, `{}`)

		in := httptest.NewRequest(http.MethodGet, "/", nil)
		in.URL.Path = ""
		resp, err := New(ts.URL, 0).Forward(in)
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if received.Path != "/" {
			t.Errorf("Path = %q, want %q", received.Path, "/")
		}
	})

	t.Run("接続できない上流ではエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		in := httptest.NewRequest(http.MethodGet, "/health", nil)
		if _, err := New(url, time.Second).Forward(in); err == nil {
			t.Fatal("Forward()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, http.StatusOK, `{}`)

		ctx, cancel := context.WithCancel(context.Background())
		cancel() // 即座にキャンセル

		in := httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(ctx)
		if _, err := New(ts.URL, 0).Forward(in); err == nil {
			t.Fatal("Forward()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestRemoveHopByHopHeaders はRemoveHopByHopHeaders関数を検証する。
func TestRemoveHopByHopHeaders(t *testing.T) {
	t.Parallel()

	t.Run("固定のホップバイホップヘッダーとConnection指定のヘッダーが除去されること", func(t *testing.T) {
		t.Parallel()

		h := http.Header{}
		h.Set("Connection", "keep-alive, X-Private")
		h.Set("Keep-Alive", "timeout=5")
		h.Set("Transfer-Encoding", "chunked")
		h.Set("X-Private", "1")
		h.Set("Content-Type", "application/json")

		RemoveHopByHopHeaders(h)

		for _, key := range []string{"Connection", "Keep-Alive", "Transfer-Encoding", "X-Private"} {
			if got := h.Get(key); got != "" {
				t.Errorf("%s = %q, want empty string", key, got)
			}
		}
		if got := h.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
	})
}
