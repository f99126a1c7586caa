// Package problem はgateway自身が生成するエラーレスポンスを
// RFC 9457 (application/problem+json) 形式で書き出す。
//
// ルートコレクションが返したエラーは変換せずにそのまま返すため、
// このパッケージを使うのは未定義パス、上流サービスへの到達失敗、
// パニックなど、gatewayが原因となるエラーに限られる。
package problem
