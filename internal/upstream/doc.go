// Package upstream はgatewayに登録する本番用のルートコレクションを提供する。
//
// プレフィックスを取り除いたリクエストをチャットボットのバックエンドへ
// そのまま転送し、バックエンドのステータス・ヘッダー・ボディを
// 変換せずに呼び出し元へ返す。CORSヘッダーはgatewayが決定するため、
// バックエンドが返したAccess-Control-*ヘッダーは破棄する。
package upstream
