// Package config はgatewayの起動構成を読み込む。
//
// 値はデフォルト値、YAMLファイル、環境変数の順に上書きされる。
// コマンドラインフラグによる上書きは呼び出し元が行い、最後にValidateで検証する。
package config
