package segmentation

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/models"
)

type refinerFakeClient struct {
	result  *llm.Result
	err     error
	lastReq llm.Request
	calls   int
}

func (f *refinerFakeClient) Call(_ context.Context, req llm.Request) (*llm.Result, error) {
	f.lastReq = req
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *refinerFakeClient) Stream(context.Context, llm.Request) (<-chan llm.Chunk, error) {
	return nil, errors.New("not implemented")
}

func TestRefineSkipsWhenAllShort(t *testing.T) {
	client := &refinerFakeClient{}
	refiner := NewRefiner(client, 30, slog.Default())

	segments := []models.Segment{
		{ID: "T1", Text: "짧은 문장입니다", Start: 0, End: 20},
	}
	got := refiner.Refine(context.Background(), segments, "짧은 문장입니다")

	assert.Zero(t, client.calls)
	assert.Equal(t, segments, got.Segments)
	assert.Zero(t, got.PromptTokens)
}

func TestRefineSplitsLongSegment(t *testing.T) {
	long := "어제 회의에서 논의된 일정 변경 건은 개발팀과 다시 조율이 필요하고 배포는 다음 주 화요일로 미루는 것이 좋겠습니다"
	maskedText := "확인 부탁드립니다. " + long
	segments := []models.Segment{
		{ID: "T1", Text: "확인 부탁드립니다.", Start: 0, End: len("확인 부탁드립니다.")},
		{ID: "T2", Text: long, Start: len("확인 부탁드립니다. "), End: len(maskedText)},
	}

	client := &refinerFakeClient{result: &llm.Result{
		Content: "[1] 어제 회의에서 논의된 일정 변경 건은 개발팀과 다시 조율이 필요하고 ||| " +
			"배포는 다음 주 화요일로 미루는 것이 좋겠습니다",
		PromptTokens:     90,
		CompletionTokens: 45,
	}}
	refiner := NewRefiner(client, 30, slog.Default())

	got := refiner.Refine(context.Background(), segments, maskedText)

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "gpt-4o-mini", client.lastReq.Model)
	assert.Contains(t, client.lastReq.User, "[1] 어제 회의에서")

	require.Len(t, got.Segments, 3)
	assert.Equal(t, "T1", got.Segments[0].ID)
	assert.Equal(t, "T2", got.Segments[1].ID)
	assert.Equal(t, "T3", got.Segments[2].ID)
	assert.Equal(t, "어제 회의에서 논의된 일정 변경 건은 개발팀과 다시 조율이 필요하고", got.Segments[1].Text)
	assert.Equal(t, "배포는 다음 주 화요일로 미루는 것이 좋겠습니다", got.Segments[2].Text)
	// offsets track the masked text
	for _, seg := range got.Segments[1:] {
		assert.Equal(t, seg.Text, maskedText[seg.Start:seg.End])
	}
	assert.Equal(t, 90, got.PromptTokens)
}

func TestRefineCallFailureKeepsOriginals(t *testing.T) {
	long := "이 문장은 서른 글자를 넘기기 위해 의도적으로 길게 작성한 세그먼트입니다"
	segments := []models.Segment{{ID: "T1", Text: long, Start: 0, End: len(long)}}

	client := &refinerFakeClient{err: errors.New("boom")}
	refiner := NewRefiner(client, 30, slog.Default())

	got := refiner.Refine(context.Background(), segments, long)
	assert.Equal(t, segments, got.Segments)
	assert.Zero(t, got.PromptTokens)
}

func TestRefineRejectsAlteredParts(t *testing.T) {
	long := "이 문장은 서른 글자를 넘기기 위해 의도적으로 길게 작성한 세그먼트입니다"
	segments := []models.Segment{{ID: "T1", Text: long, Start: 0, End: len(long)}}

	// the model rewrote text instead of splitting it
	client := &refinerFakeClient{result: &llm.Result{
		Content: "[1] 완전히 다른 텍스트 ||| 또 다른 텍스트",
	}}
	refiner := NewRefiner(client, 30, slog.Default())

	got := refiner.Refine(context.Background(), segments, long)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, long, got.Segments[0].Text)
}

func TestRefineIgnoresOutOfRangeEntries(t *testing.T) {
	long := "이 문장은 서른 글자를 넘기기 위해 의도적으로 길게 작성한 세그먼트입니다"
	segments := []models.Segment{{ID: "T1", Text: long, Start: 0, End: len(long)}}

	client := &refinerFakeClient{result: &llm.Result{
		Content: "[7] 무시될 항목\n[1] " + long,
	}}
	refiner := NewRefiner(client, 30, slog.Default())

	got := refiner.Refine(context.Background(), segments, long)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, long, got.Segments[0].Text)
}

func TestRefineRenumbersGlobally(t *testing.T) {
	long := "첫 번째로 말씀드릴 내용은 일정이 지연되었다는 점이고 두 번째는 예산이 초과되었다는 점입니다"
	maskedText := long + " 감사합니다."
	segments := []models.Segment{
		{ID: "T1", Text: long, Start: 0, End: len(long)},
		{ID: "T2", Text: "감사합니다.", Start: len(long) + 1, End: len(maskedText)},
	}

	client := &refinerFakeClient{result: &llm.Result{
		Content: "[1] 첫 번째로 말씀드릴 내용은 일정이 지연되었다는 점이고 ||| 두 번째는 예산이 초과되었다는 점입니다",
	}}
	refiner := NewRefiner(client, 30, slog.Default())

	got := refiner.Refine(context.Background(), segments, maskedText)
	require.Len(t, got.Segments, 3)
	assert.Equal(t, []string{"T1", "T2", "T3"},
		[]string{got.Segments[0].ID, got.Segments[1].ID, got.Segments[2].ID})
	assert.Equal(t, "감사합니다.", got.Segments[2].Text)
}
