package segmentation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSegmenter() *Segmenter {
	return NewSegmenter(250, 80, 60)
}

func segmentTexts(t *testing.T, text string) []string {
	t.Helper()
	segments := newTestSegmenter().Segment(text)
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	return texts
}

func TestSegmentEmpty(t *testing.T) {
	assert.Empty(t, newTestSegmenter().Segment(""))
	assert.Empty(t, newTestSegmenter().Segment("   \n  "))
}

func TestSegmentSingleSentence(t *testing.T) {
	segments := newTestSegmenter().Segment("내일까지 보고서 제출 부탁드립니다.")
	require.Len(t, segments, 1)
	assert.Equal(t, "T1", segments[0].ID)
}

func TestSegmentBlankLines(t *testing.T) {
	texts := segmentTexts(t, "첫 번째 문단입니다\n\n두 번째 문단입니다")
	require.Len(t, texts, 2)
	assert.Equal(t, "첫 번째 문단입니다", texts[0])
	assert.Equal(t, "두 번째 문단입니다", texts[1])
}

func TestSegmentExplicitSeparator(t *testing.T) {
	texts := segmentTexts(t, "앞부분 내용입니다\n---\n뒷부분 내용입니다")
	require.Len(t, texts, 2)
	assert.Equal(t, "앞부분 내용입니다", texts[0])
	assert.Equal(t, "뒷부분 내용입니다", texts[1])
}

func TestSegmentBulletList(t *testing.T) {
	texts := segmentTexts(t, "오늘 할 일 정리해서 공유합니다\n- 보고서 초안 작성해서 검토 요청\n- 회의록 정리해서 팀에 공유")
	require.Len(t, texts, 3)
	assert.Equal(t, "오늘 할 일 정리해서 공유합니다", texts[0])
	assert.Equal(t, "보고서 초안 작성해서 검토 요청", texts[1])
	assert.Equal(t, "회의록 정리해서 팀에 공유", texts[2])
}

func TestSegmentNumberedList(t *testing.T) {
	texts := segmentTexts(t, "검토 항목 안내드립니다\n1. 예산안 수정 사항 확인\n2. 일정표 업데이트 확인")
	require.Len(t, texts, 3)
	assert.Equal(t, "예산안 수정 사항 확인", texts[1])
	assert.Equal(t, "일정표 업데이트 확인", texts[2])
}

func TestSegmentFormalEndings(t *testing.T) {
	texts := segmentTexts(t, "어제 요청하신 자료 정리했습니다. 검토 부탁드립니다.")
	require.Len(t, texts, 2)
	assert.Equal(t, "어제 요청하신 자료 정리했습니다", texts[0])
	assert.Equal(t, "검토 부탁드립니다", texts[1])
}

func TestSegmentPoliteEndings(t *testing.T) {
	texts := segmentTexts(t, "자료가 아직 안 왔어요 확인 한번 해주세요 급해요")
	assert.GreaterOrEqual(t, len(texts), 2)
}

func TestSegmentCasualEndings(t *testing.T) {
	texts := segmentTexts(t, "보고서 아직 안 보냈어 빨리 보내줘야 했지 내일까지 꼭 보내자")
	assert.GreaterOrEqual(t, len(texts), 2)
}

func TestSegmentAmbiguousEndingNotSplit(t *testing.T) {
	// 는데 as a mid-sentence connective must not split a short clause.
	texts := segmentTexts(t, "어제 말했는데 아직 답이 없어서 다시 연락드립니다.")
	require.Len(t, texts, 1)
}

func TestSegmentAmbiguousEndingSplitsBeforeDiscourseMarker(t *testing.T) {
	texts := segmentTexts(t, "어제 분명히 요청했는데 그런데 아직도 아무 답변이 없습니다")
	assert.GreaterOrEqual(t, len(texts), 2)
	assert.Equal(t, "어제 분명히 요청했는데", texts[0])
}

func TestSegmentPlaceholderNeverSplit(t *testing.T) {
	texts := segmentTexts(t, "기한은 {{DATE_1}} 입니다. 파일은 {{FILE_1}} 입니다.")
	for _, text := range texts {
		// Placeholders survive segmentation intact.
		if strings.Contains(text, "{{") {
			assert.Contains(t, text, "}}")
		}
	}
}

func TestSegmentParenthesesProtected(t *testing.T) {
	// Punctuation inside parentheses must not create a boundary.
	texts := segmentTexts(t, "회의 일정(변경될 수 있음. 추후 공지)을 확인해주세요.")
	require.Len(t, texts, 1)
}

func TestSegmentWeakPunctuation(t *testing.T) {
	texts := segmentTexts(t, "계속 기다렸는데… 아직도 소식이 없네; 어떻게 된 건지")
	assert.GreaterOrEqual(t, len(texts), 2)
}

func TestSegmentLongTextForceSplit(t *testing.T) {
	long := strings.Repeat("길고 긴 내용이 계속 이어지는 문장으로 ", 20)
	segments := newTestSegmenter().Segment(long)
	require.NotEmpty(t, segments)
	for _, s := range segments {
		assert.LessOrEqual(t, len([]rune(s.Text)), 250)
	}
}

func TestSegmentEnumeration(t *testing.T) {
	texts := segmentTexts(t, "이번 분기에는 신규 고객 응대 프로세스 개선 작업, 내부 보고서 양식 전면 개편 작업, 주간 회의 운영 방식 변경 검토까지 진행해야 합니다")
	assert.GreaterOrEqual(t, len(texts), 3)
}

func TestSegmentEnumerationTooShortPartsKept(t *testing.T) {
	// Comma parts under the minimum length keep the unit whole.
	texts := segmentTexts(t, "사과, 배, 감, 귤을 준비해주시고 회의실 예약도 함께 부탁드리며 확인 바랍니다")
	require.Len(t, texts, 1)
}

func TestSegmentDiscourseMarkers(t *testing.T) {
	texts := segmentTexts(t, "지난주에 전달드린 자료는 모두 확인을 완료했고 지금은 추가 검토 중입니다. 그런데 일정이 생각보다 많이 지연되고 있어서 공유드립니다")
	assert.GreaterOrEqual(t, len(texts), 2)
	found := false
	for _, text := range texts {
		if strings.HasPrefix(text, "그런데") {
			found = true
		}
	}
	assert.True(t, found, "expected a segment starting with the discourse marker: %v", texts)
}

func TestSegmentCompoundMarkerNotSplit(t *testing.T) {
	texts := segmentTexts(t, "지난주에 전달드린 자료는 모두 확인을 완료했고 지금도 계속 검토 중입니다. 그런데도 일정이 계속 지연되고 있어서 다시 공유드립니다")
	for _, text := range texts {
		assert.False(t, strings.HasPrefix(text, "그런데도") && len(texts) > 2,
			"compound marker must not trigger a discourse split")
	}
}

func TestSegmentMergeShortRuns(t *testing.T) {
	texts := segmentTexts(t, "네. 넵. 확인. 알겠습니다 바로 처리하겠습니다.")
	for i, text := range texts {
		if i < len(texts)-1 {
			assert.GreaterOrEqual(t, len([]rune(text)), 3, "short runs should be merged: %v", texts)
		}
	}
}

func TestSegmentOffsetsMatchSource(t *testing.T) {
	text := "어제 요청하신 자료 정리했습니다. 검토 부탁드립니다.\n\n추가 문의는 {{EMAIL_1}} 으로 주세요."
	segments := newTestSegmenter().Segment(text)
	require.NotEmpty(t, segments)
	for _, s := range segments {
		assert.Equal(t, s.Text, text[s.Start:s.End], "segment %s offsets must index its text", s.ID)
	}
}

func TestSegmentIDsSequential(t *testing.T) {
	segments := newTestSegmenter().Segment("첫 번째 문단입니다\n\n두 번째 문단입니다\n\n세 번째 문단입니다")
	require.Len(t, segments, 3)
	assert.Equal(t, "T1", segments[0].ID)
	assert.Equal(t, "T2", segments[1].ID)
	assert.Equal(t, "T3", segments[2].ID)
}
