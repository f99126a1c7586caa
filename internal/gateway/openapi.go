package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPI はGatewayが自ら応答するエンドポイントのOpenAPI 3文書を生成する。
// プレフィックス配下はルートコレクションの責務のため含めない。
func OpenAPI(cfg Config) (*openapi3.T, error) {
	title := cfg.Title
	if title == "" {
		title = DefaultTitle
	}
	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}

	statusSchema := openapi3.NewObjectSchema().
		WithProperty("status", openapi3.NewStringSchema())
	statusSchema.Required = []string{"status"}

	liveness := openapi3.NewOperation()
	liveness.OperationID = "root"
	liveness.Summary = "Liveness probe"
	liveness.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription("The service is running").
				WithJSONSchema(statusSchema),
		}),
	)

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       title,
			Version:     version,
			Description: fmt.Sprintf("Routes under %s are served by the mounted route collection.", cfg.Prefix),
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/", &openapi3.PathItem{Get: liveness}),
		),
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("OpenAPI文書の検証に失敗: %w", err)
	}
	return doc, nil
}
