// チャットボットAPI Gatewayのエントリポイント。
// フロントエンドからのリクエストをCORSポリシーに従って受け付け、
// /api 配下をチャットボットのバックエンドへ転送する。
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nao1215/lexgate/internal/config"
	"github.com/nao1215/lexgate/internal/gateway"
	"github.com/nao1215/lexgate/internal/upstream"
	"github.com/spf13/cobra"
)

// shutdownTimeout は処理中のリクエストの完了を待つ最大時間。
const shutdownTimeout = 10 * time.Second

// options はコマンドラインフラグの値。空の値は未指定を表す。
type options struct {
	configPath string
	port       string
	origins    []string
	upstream   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("Gatewayサービスの実行に失敗: %v", err)
	}
}

// newRootCmd はgatewayを起動するルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "gateway",
		Short:         "Chatbot API gateway (CORS, liveness probe, /api forwarding)",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadDotEnv(".env"); err != nil {
				return err
			}
			cfg, err := buildConfig(opts, os.LookupEnv)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file (optional)")
	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "Listen port (overrides PORT)")
	cmd.Flags().StringArrayVar(&opts.origins, "allowed-origin", nil, "Allowed CORS origin; repeat for several (overrides CORS_ALLOWED_ORIGINS)")
	cmd.Flags().StringVar(&opts.upstream, "upstream", "", "Chatbot backend base URL (overrides CHATBOT_UPSTREAM_URL)")
	return cmd
}

// loadDotEnv はpathの.envファイルを環境変数に読み込む。
// 既に設定されている環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}
	log.Printf(".envファイルを読み込みました: %s", path)
	return nil
}

// buildConfig は構成ファイルと環境変数にフラグを重ねた構成を検証して返す。
func buildConfig(opts options, lookup config.LookupFunc) (config.Config, error) {
	cfg, err := config.Load(opts.configPath, lookup)
	if err != nil {
		return config.Config{}, err
	}

	if opts.port != "" {
		cfg.Port = opts.port
	}
	if len(opts.origins) > 0 {
		cfg.CORS.AllowedOrigins = opts.origins
	}
	if opts.upstream != "" {
		cfg.Upstream.URL = opts.upstream
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// run はgatewayを起動し、ctxがキャンセルされたらグレースフルに停止する。
func run(ctx context.Context, cfg config.Config) error {
	proxy, err := upstream.New(cfg.Upstream.URL, cfg.Upstream.Timeout)
	if err != nil {
		return fmt.Errorf("上流サービスの設定に失敗: %w", err)
	}

	server, err := gateway.NewServer(cfg.GatewayConfig(), gateway.HandlerCollection(proxy))
	if err != nil {
		return fmt.Errorf("Gatewayサーバーの初期化に失敗: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Gatewayサービスを起動します: :%s (%s → %s)", cfg.Port, cfg.APIPrefix, proxy.BaseURL())
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("Gatewayサービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
