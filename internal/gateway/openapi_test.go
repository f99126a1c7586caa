package gateway

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

func TestOpenAPI(t *testing.T) {
	t.Parallel()

	t.Run("ヘルスチェックのみを含む検証済みの文書を生成すること", func(t *testing.T) {
		t.Parallel()

		doc, err := OpenAPI(testConfig())
		if err != nil {
			t.Fatalf("OpenAPI()でエラーが発生: %v", err)
		}

		if doc.Paths.Len() != 1 {
			t.Errorf("パス数 = %d, want 1", doc.Paths.Len())
		}
		item := doc.Paths.Value("/")
		if item == nil || item.Get == nil {
			t.Fatal("GET / の定義が存在しない")
		}
		if item.Get.OperationID != "root" {
			t.Errorf("operationId = %q, want %q", item.Get.OperationID, "root")
		}
		if item.Get.Responses.Status(http.StatusOK) == nil {
			t.Error("200レスポンスの定義が存在しない")
		}
		if !strings.Contains(doc.Info.Description, DefaultPrefix) {
			t.Errorf("description = %q, プレフィックスを含むべき", doc.Info.Description)
		}
	})

	t.Run("配信される文書がそのまま読み込めること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, HandlerCollection(&stubCollection{}))
		w := serve(s, http.MethodGet, "/openapi.json", "")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(w.Body.Bytes())
		if err != nil {
			t.Fatalf("OpenAPI文書の読み込みに失敗: %v", err)
		}
		if err := doc.Validate(context.Background()); err != nil {
			t.Errorf("OpenAPI文書の検証に失敗: %v", err)
		}
	})
}
