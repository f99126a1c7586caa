// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// クロスオリジンポリシーの判定と適用、パニックリカバリ、
// リクエストIDの付与、アクセスログなど、gatewayの入口で
// 全リクエストに適用するミドルウェアを含む。
package middleware
