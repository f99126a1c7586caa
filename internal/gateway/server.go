package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/lexgate/pkg/jsonutil"
	"github.com/nao1215/lexgate/pkg/middleware"
	"github.com/nao1215/lexgate/pkg/problem"
)

const (
	// LivenessStatus はヘルスチェックが返す固定のステータス文字列。
	LivenessStatus = "Chatbot running"
	// DefaultPrefix はルートコレクションをマウントするデフォルトのプレフィックス。
	DefaultPrefix = "/api"
	// DefaultTitle はOpenAPI文書のデフォルトのタイトル。
	DefaultTitle = "Nepal Legal Chatbot API"
	// DefaultVersion はOpenAPI文書のデフォルトのバージョン。
	DefaultVersion = "0.1.0"
	// readHeaderTimeout はリクエストヘッダー読み取りのタイムアウト。
	readHeaderTimeout = 10 * time.Second
)

// Config はGatewayの構成。NewServerに渡した後は参照されない。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// Prefix はルートコレクションをマウントするパスのプレフィックス。
	Prefix string
	// CORS はクロスオリジンリクエストの許可ポリシー。
	CORS middleware.CORSPolicy
	// Title はOpenAPI文書のタイトル。空の場合はDefaultTitle。
	Title string
	// Version はOpenAPI文書のバージョン。空の場合はDefaultVersion。
	Version string
	// AccessLog はアクセスログの出力先。nilの場合はgin.DefaultWriter。
	AccessLog io.Writer
}

// DefaultConfig はデフォルトのGateway構成を返す。
func DefaultConfig() Config {
	return Config{
		Port:    "8000",
		Prefix:  DefaultPrefix,
		CORS:    middleware.DefaultCORSPolicy(),
		Title:   DefaultTitle,
		Version: DefaultVersion,
	}
}

// Validate は構成を検証する。
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("ポート番号が不正です: %q", c.Port)
	}
	if err := validatePrefix(c.Prefix); err != nil {
		return err
	}
	if err := c.CORS.Validate(); err != nil {
		return fmt.Errorf("CORSポリシーが不正です: %w", err)
	}
	return nil
}

// validatePrefix はプレフィックスがルート以外の静的なパスであることを検証する。
func validatePrefix(prefix string) error {
	switch {
	case !strings.HasPrefix(prefix, "/"):
		return fmt.Errorf("プレフィックスは / で始まる必要があります: %q", prefix)
	case prefix == "/":
		return errors.New("プレフィックスに / は指定できません（ヘルスチェックと衝突します）")
	case strings.HasSuffix(prefix, "/"):
		return fmt.Errorf("プレフィックスの末尾に / は指定できません: %q", prefix)
	case strings.ContainsAny(prefix, ":*?#"):
		return fmt.Errorf("プレフィックスにパラメータやワイルドカードは指定できません: %q", prefix)
	}
	return nil
}

// Server はGatewayのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。構築後は変更しない。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// prefix はルートコレクションのマウント先。
	prefix string
	// httpServer はRunで起動するHTTPサーバー。
	httpServer *http.Server
}

// livenessResponse はヘルスチェックのJSONレスポンス構造。
type livenessResponse struct {
	// Status はサービスの稼働状態。
	Status string `json:"status"`
}

// NewServer は新しいGatewayサーバーを生成する。
// 構成の不備やルートコレクションの登録失敗は起動時の致命的なエラーとして返す。
func NewServer(cfg Config, collection RouteCollection) (*Server, error) {
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Gatewayの構成が不正です: %w", err)
	}
	if collection == nil {
		return nil, errors.New("ルートコレクションが指定されていません")
	}

	router := gin.New()
	// /api のようなプレフィックスそのものへのリクエストを
	// CORSを通らないリダイレクトにしない
	router.RedirectTrailingSlash = false
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(cfg.AccessLog))
	router.Use(middleware.CORS(cfg.CORS))

	s := &Server{
		router: router,
		port:   cfg.Port,
		prefix: cfg.Prefix,
	}
	if err := s.setupRoutes(cfg, collection); err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

// Handler はGatewayのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Prefix はルートコレクションのマウント先を返す。
func (s *Server) Prefix() string {
	return s.prefix
}

// Run はHTTPサーバーを起動する。Shutdownによる停止の場合はnilを返す。
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTPサーバーの実行に失敗: %w", err)
	}
	return nil
}

// Shutdown は処理中のリクエストの完了を待ってHTTPサーバーを停止する。
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はルートテーブルを構築する。
// ヘルスチェックを先に登録してから、ルートコレクションをプレフィックス配下にマウントする。
func (s *Server) setupRoutes(cfg Config, collection RouteCollection) error {
	liveness, err := jsonutil.Marshal(livenessResponse{Status: LivenessStatus})
	if err != nil {
		return fmt.Errorf("ヘルスチェック応答の生成に失敗: %w", err)
	}

	doc, err := OpenAPI(cfg)
	if err != nil {
		return err
	}
	docJSON, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("OpenAPI文書のシリアライズに失敗: %w", err)
	}

	// ヘルスチェック
	s.router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", liveness)
	})

	// API仕様
	s.router.GET("/openapi.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", docJSON)
	})

	s.router.NoRoute(handleNotFound)

	return s.mountCollection(collection)
}

// mountCollection はルートコレクションをプレフィックス配下に登録する。
// 登録時のパニック（ルートの衝突など）とプレフィックス外へのルート登録はエラーとして返す。
func (s *Server) mountCollection(collection RouteCollection) (err error) {
	before := make(map[string]struct{})
	for _, r := range s.router.Routes() {
		before[r.Method+" "+r.Path] = struct{}{}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ルートコレクションの登録に失敗: %v", r)
		}
	}()
	collection.Mount(s.router.Group(s.prefix))

	for _, r := range s.router.Routes() {
		if _, ok := before[r.Method+" "+r.Path]; ok {
			continue
		}
		if r.Path != s.prefix && !strings.HasPrefix(r.Path, s.prefix+"/") {
			return fmt.Errorf("ルートコレクションがプレフィックス %s の外にルートを登録しました: %s %s", s.prefix, r.Method, r.Path)
		}
	}
	return nil
}

// handleNotFound は未定義パスへのリクエストに404を返すハンドラ。
func handleNotFound(c *gin.Context) {
	traceID := problem.Write(c.Writer, c.Request, http.StatusNotFound, "Not Found")
	log.Printf("未定義パスへのリクエスト: traceId=%s, method=%s, path=%s", traceID, c.Request.Method, c.Request.URL.Path)
}
