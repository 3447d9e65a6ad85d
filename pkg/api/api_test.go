package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/politeai/tonebridge/pkg/config"
	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/pipeline"
)

// stubClient answers each pipeline stage by its system prompt marker.
type stubClient struct{}

func (stubClient) respond(req llm.Request) *llm.Result {
	switch {
	case strings.Contains(req.System, "상황 분석 전문가"):
		return &llm.Result{Content: `{"facts":[],"intent":"보고서 제출 요청"}`, PromptTokens: 80, CompletionTokens: 20}
	case strings.Contains(req.System, "구조 분석 전문가"):
		return &llm.Result{Content: "T1|REQUEST", PromptTokens: 120, CompletionTokens: 10}
	case strings.Contains(req.System, "의미 분절 전문가"),
		strings.Contains(req.System, "쿠션 전략 설계 전문가"),
		strings.Contains(req.System, "메타데이터 검증 전문가"),
		strings.Contains(req.System, "고유 표현을 추출하는 전문가"):
		return &llm.Result{Content: ""}
	default:
		return &llm.Result{
			Content:          "안녕하세요. 내일까지 보고서를 전달해 주시면 감사하겠습니다.",
			PromptTokens:     400,
			CompletionTokens: 90,
		}
	}
}

func (s stubClient) Call(_ context.Context, req llm.Request) (*llm.Result, error) {
	return s.respond(req), nil
}

func (s stubClient) Stream(_ context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	result := s.respond(req)
	ch := make(chan llm.Chunk, 2)
	ch <- &llm.TextChunk{Content: result.Content}
	ch <- &llm.UsageChunk{PromptTokens: result.PromptTokens, CompletionTokens: result.CompletionTokens}
	close(ch)
	return ch, nil
}

func testServer(t *testing.T) (*Server, *echo.Echo) {
	t.Helper()
	settings := &config.Settings{
		GeminiFinalModel:                  "gemini-2.5-flash",
		GeminiLabelModel:                  "gemini-2.5-flash-lite",
		OpenAIMaxTokensPaid:               4000,
		SegmenterMaxSegmentLength:         250,
		SegmenterDiscourseMarkerMinLength: 80,
		SegmenterEnumerationMinLength:     60,
		TierPaidMaxTextLength:             2000,
		RAGAdminToken:                     "secret-token",
	}
	p := pipeline.New(stubClient{}, settings, nil, slog.Default())
	s := NewServer(p, settings, nil, nil, slog.Default())
	e := echo.New()
	s.Register(e)
	return s, e
}

func postJSON(e *echo.Echo, path string, body any) *httptest.ResponseRecorder {
	encoded, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTransformHandler(t *testing.T) {
	_, e := testServer(t)

	rec := postJSON(e, "/api/v1/transform", TransformRequest{
		OriginalText: "내일까지 보고서 보내주세요",
		Persona:      "BOSS",
		ToneLevel:    "POLITE",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp TransformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.TransformedText, "보고서")
	assert.Equal(t, "T01_GENERAL", resp.Stats.ChosenTemplateID)
}

func TestTransformHandlerRejectsEmptyText(t *testing.T) {
	_, e := testServer(t)

	rec := postJSON(e, "/api/v1/transform", TransformRequest{})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error)
}

func TestTransformHandlerRejectsOversizedText(t *testing.T) {
	_, e := testServer(t)

	rec := postJSON(e, "/api/v1/transform", TransformRequest{
		OriginalText: strings.Repeat("가", 2001),
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error)
	assert.Contains(t, body.Message, "최대 2000자")
}

func TestTierHandler(t *testing.T) {
	_, e := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transform/tier", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp TierInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PAID", resp.Tier)
	assert.Equal(t, 2000, resp.MaxTextLength)
	assert.True(t, resp.PromptEnabled)
}

func TestStreamHandlerEmitsSSE(t *testing.T) {
	_, e := testServer(t)

	rec := postJSON(e, "/api/v1/transform/stream", TransformRequest{
		OriginalText: "내일까지 보고서 보내주세요",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: phase\n")
	assert.Contains(t, body, "event: delta\n")
	assert.Contains(t, body, "event: stats\n")
	assert.Contains(t, body, "event: done\n")

	// done comes last
	doneIdx := strings.LastIndex(body, "event: done\n")
	assert.Equal(t, -1, strings.Index(body[doneIdx+len("event: done\n"):], "event: "))
}

func TestStreamABHandlerEmitsBothVariants(t *testing.T) {
	_, e := testServer(t)

	rec := postJSON(e, "/api/v1/transform/stream-ab", TransformRequest{
		OriginalText: "내일까지 보고서 보내주세요",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "event: done_a\n")
	assert.Contains(t, body, "event: done_b\n")
}

func TestRagReloadRequiresToken(t *testing.T) {
	_, e := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/internal/rag/reload", nil)
	req.Header.Set("X-Internal-Token", "wrong")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRagReloadUnconfiguredStore(t *testing.T) {
	_, e := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/internal/rag/reload", nil)
	req.Header.Set("X-Internal-Token", "secret-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	_, e := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}
