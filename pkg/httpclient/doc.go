// Package httpclient は上流サービスへリクエストを転送するHTTPクライアントを提供する。
//
// gatewayが受け取ったリクエストを、メソッド・クエリ・ボディ・
// エンドツーエンドヘッダーを保ったまま上流サービスへ送り直す。
// ホップバイホップヘッダーは転送しない。
package httpclient
