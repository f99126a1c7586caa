package problem

import (
	"fmt"
	"log"
	mathrand "math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/nao1215/lexgate/pkg/jsonutil"
	"github.com/oklog/ulid/v2"
)

const (
	// ContentType はproblem文書のContent-Type。
	ContentType = "application/problem+json"
	// statusDocBaseURL はtypeフィールドに使用するステータス説明ページのベースURL。
	statusDocBaseURL = "https://httpstatuses.io"
)

// Details はRFC 9457のproblem文書を表す。
type Details struct {
	// Type は問題の種類を示すURI。
	Type string `json:"type,omitempty"`
	// Title はステータスコードの短い説明。
	Title string `json:"title"`
	// Status はHTTPステータスコード。
	Status int `json:"status"`
	// Detail は今回の発生に固有の説明。
	Detail string `json:"detail,omitempty"`
	// Instance は問題が発生したリクエストパス。
	Instance string `json:"instance,omitempty"`
	// TraceID はログと突き合わせるための識別子（ULID）。
	TraceID string `json:"traceId,omitempty"`
	// Timestamp は発生日時（RFC3339形式）。
	Timestamp string `json:"timestamp,omitempty"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewTraceID は時刻順にソート可能なトレースIDを生成する。
func NewTraceID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// New はステータスコードと詳細メッセージからproblem文書を組み立てる。
func New(r *http.Request, status int, detail string) Details {
	d := Details{
		Type:      fmt.Sprintf("%s/%d", statusDocBaseURL, status),
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    detail,
		TraceID:   NewTraceID(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if r != nil && r.URL != nil {
		d.Instance = r.URL.Path
	}
	return d
}

// Write はproblem文書をwに書き出し、付与したトレースIDを返す。
func Write(w http.ResponseWriter, r *http.Request, status int, detail string) string {
	d := New(r, status, detail)

	body, err := jsonutil.Marshal(d)
	if err != nil {
		// Detailsは文字列と整数のみで構成されるため通常は到達しない
		log.Printf("problem文書のシリアライズに失敗: %v", err)
		http.Error(w, d.Title, status)
		return d.TraceID
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Printf("problem文書の書き込みに失敗: traceId=%s, error=%v", d.TraceID, err)
	}
	return d.TraceID
}
