package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/lexgate/internal/gateway"
	"github.com/nao1215/lexgate/pkg/httpclient"
	"github.com/nao1215/lexgate/pkg/middleware"
	"gopkg.in/yaml.v3"
)

// 環境変数名。
const (
	EnvPort                 = "PORT"
	EnvAPIPrefix            = "API_PREFIX"
	EnvCORSAllowedOrigins   = "CORS_ALLOWED_ORIGINS"
	EnvCORSAllowCredentials = "CORS_ALLOW_CREDENTIALS"
	EnvCORSAllowMethods     = "CORS_ALLOW_METHODS"
	EnvCORSAllowHeaders     = "CORS_ALLOW_HEADERS"
	EnvCORSMaxAge           = "CORS_MAX_AGE"
	EnvUpstreamURL          = "CHATBOT_UPSTREAM_URL"
	EnvUpstreamTimeout      = "CHATBOT_UPSTREAM_TIMEOUT"
)

// DefaultUpstreamURL はチャットボットのバックエンドのデフォルトURL。
const DefaultUpstreamURL = "http://localhost:8001"

// LookupFunc は環境変数を参照する関数。os.LookupEnvと同じシグネチャ。
type LookupFunc func(key string) (string, bool)

// Config はgatewayの起動構成。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// APIPrefix はルートコレクションをマウントするプレフィックス。
	APIPrefix string
	// CORS はクロスオリジンリクエストの設定。
	CORS CORSConfig
	// Upstream はチャットボットのバックエンドの設定。
	Upstream UpstreamConfig
}

// CORSConfig はクロスオリジンリクエストの設定。
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	AllowMethods     []string
	AllowHeaders     []string
	MaxAge           int
}

// UpstreamConfig はチャットボットのバックエンドの設定。
type UpstreamConfig struct {
	// URL はバックエンドのベースURL。
	URL string
	// Timeout は1リクエストあたりのタイムアウト。
	Timeout time.Duration
}

// yamlConfig は構成ファイルの形式。省略されたキーはデフォルト値を保つ。
type yamlConfig struct {
	Port      *int   `yaml:"port"`
	APIPrefix string `yaml:"api_prefix"`
	CORS      struct {
		AllowedOrigins   []string `yaml:"allowed_origins"`
		AllowCredentials *bool    `yaml:"allow_credentials"`
		AllowMethods     []string `yaml:"allow_methods"`
		AllowHeaders     []string `yaml:"allow_headers"`
		MaxAge           *int     `yaml:"max_age"`
	} `yaml:"cors"`
	Upstream struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"upstream"`
}

// Default はデフォルトの構成を返す。
func Default() Config {
	policy := middleware.DefaultCORSPolicy()
	return Config{
		Port:      "8000",
		APIPrefix: gateway.DefaultPrefix,
		CORS: CORSConfig{
			AllowedOrigins:   policy.AllowedOrigins,
			AllowCredentials: policy.AllowCredentials,
			AllowMethods:     policy.AllowMethods,
			AllowHeaders:     policy.AllowHeaders,
			MaxAge:           policy.MaxAge,
		},
		Upstream: UpstreamConfig{
			URL:     DefaultUpstreamURL,
			Timeout: httpclient.DefaultTimeout,
		},
	}
}

// Load はデフォルト値にpathのYAMLファイルとlookupの環境変数を重ねた構成を返す。
// pathが空の場合はファイルを読まない。lookupがnilの場合はos.LookupEnvを使用する。
// 検証は行わないため、フラグを適用した後にValidateを呼ぶこと。
func Load(path string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyFile はYAMLファイルの値で構成を上書きする。
func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("構成ファイルの読み込みに失敗: %w", err)
	}

	var y yamlConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&y); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("構成ファイルの解析に失敗: %s: %w", path, err)
	}

	if y.Port != nil {
		c.Port = strconv.Itoa(*y.Port)
	}
	if y.APIPrefix != "" {
		c.APIPrefix = y.APIPrefix
	}
	if y.CORS.AllowedOrigins != nil {
		c.CORS.AllowedOrigins = y.CORS.AllowedOrigins
	}
	if y.CORS.AllowCredentials != nil {
		c.CORS.AllowCredentials = *y.CORS.AllowCredentials
	}
	if y.CORS.AllowMethods != nil {
		c.CORS.AllowMethods = y.CORS.AllowMethods
	}
	if y.CORS.AllowHeaders != nil {
		c.CORS.AllowHeaders = y.CORS.AllowHeaders
	}
	if y.CORS.MaxAge != nil {
		c.CORS.MaxAge = *y.CORS.MaxAge
	}
	if y.Upstream.URL != "" {
		c.Upstream.URL = y.Upstream.URL
	}
	if y.Upstream.Timeout != "" {
		d, err := time.ParseDuration(y.Upstream.Timeout)
		if err != nil {
			return fmt.Errorf("upstream.timeoutが不正です: %w", err)
		}
		c.Upstream.Timeout = d
	}
	return nil
}

// applyEnv は環境変数の値で構成を上書きする。空の環境変数は未設定として扱う。
func (c *Config) applyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvPort); ok {
		c.Port = v
	}
	if v, ok := get(EnvAPIPrefix); ok {
		c.APIPrefix = v
	}
	if v, ok := get(EnvCORSAllowedOrigins); ok {
		c.CORS.AllowedOrigins = splitList(v)
	}
	if v, ok := get(EnvCORSAllowCredentials); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sが不正です: %w", EnvCORSAllowCredentials, err)
		}
		c.CORS.AllowCredentials = b
	}
	if v, ok := get(EnvCORSAllowMethods); ok {
		c.CORS.AllowMethods = splitList(v)
	}
	if v, ok := get(EnvCORSAllowHeaders); ok {
		c.CORS.AllowHeaders = splitList(v)
	}
	if v, ok := get(EnvCORSMaxAge); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sが不正です: %w", EnvCORSMaxAge, err)
		}
		c.CORS.MaxAge = n
	}
	if v, ok := get(EnvUpstreamURL); ok {
		c.Upstream.URL = v
	}
	if v, ok := get(EnvUpstreamTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sが不正です: %w", EnvUpstreamTimeout, err)
		}
		c.Upstream.Timeout = d
	}
	return nil
}

// splitList はカンマ区切りの値を空要素を除いて分割する。
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate は構成を検証する。
// ポート・プレフィックス・CORSポリシーの検証はgateway.Config.Validateに委ねる。
func (c Config) Validate() error {
	var errs []error

	if err := c.GatewayConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Upstream.URL == "" {
		errs = append(errs, errors.New("チャットボットのバックエンドURLが指定されていません"))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("バックエンドのタイムアウトは正の値である必要があります: %s", c.Upstream.Timeout))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("構成が不正です: %w", err)
	}
	return nil
}

// CORSPolicy はCORSミドルウェアのポリシーを返す。
func (c Config) CORSPolicy() middleware.CORSPolicy {
	return middleware.CORSPolicy{
		AllowedOrigins:   slices.Clone(c.CORS.AllowedOrigins),
		AllowCredentials: c.CORS.AllowCredentials,
		AllowMethods:     slices.Clone(c.CORS.AllowMethods),
		AllowHeaders:     slices.Clone(c.CORS.AllowHeaders),
		MaxAge:           c.CORS.MaxAge,
	}
}

// GatewayConfig はgateway.NewServerに渡す構成を返す。
func (c Config) GatewayConfig() gateway.Config {
	g := gateway.DefaultConfig()
	g.Port = c.Port
	g.Prefix = c.APIPrefix
	g.CORS = c.CORSPolicy()
	return g
}
