package jsonutil

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// api はencoding/json互換の挙動を持つsonicの設定。
var api = sonic.ConfigStd

// Marshal は値をJSONにシリアライズする。
func Marshal(v any) ([]byte, error) {
	data, err := api.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("JSONのシリアライズに失敗: %w", err)
	}
	return data, nil
}

// Unmarshal はJSONを値にデシリアライズする。
func Unmarshal(data []byte, v any) error {
	if err := api.Unmarshal(data, v); err != nil {
		return fmt.Errorf("JSONのデシリアライズに失敗: %w", err)
	}
	return nil
}

// Encode は値をJSONとしてwに書き込む。
func Encode(w io.Writer, v any) error {
	if err := api.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("JSONのエンコードに失敗: %w", err)
	}
	return nil
}

// Decode はrからJSONを読み取り値にデコードする。
func Decode(r io.Reader, v any) error {
	if err := api.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("JSONのデコードに失敗: %w", err)
	}
	return nil
}
