// Package jsonutil はsonicを利用したJSONエンコード・デコードの薄いラッパーを提供する。
//
// gatewayが自前で生成するレスポンス（ヘルスチェック、エラー文書）の
// シリアライズに使用する。
package jsonutil
