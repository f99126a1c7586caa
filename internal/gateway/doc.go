// Package gateway はチャットボットAPIのエッジHTTP Gatewayを提供する。
//
// 全リクエストにCORSポリシーを適用し、設定されたプレフィックス（既定は /api）
// 配下のリクエストを外部から注入されたルートコレクションへ委譲する。
// ルート / では固定のヘルスチェック応答を返す。
//
// ルートテーブルとCORSポリシーはNewServerの時点で確定し、以降は変更されない。
// 同一プロセス内で独立したServerを複数生成できる。
package gateway
