package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/politeai/tonebridge/pkg/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"trims whitespace", "  안녕하세요  ", "안녕하세요"},
		{"crlf to lf", "첫줄\r\n둘째줄", "첫줄\n둘째줄"},
		{"bare cr to lf", "첫줄\r둘째줄", "첫줄\n둘째줄"},
		{"collapses spaces and tabs", "너무   많은\t\t공백", "너무 많은 공백"},
		{"collapses newline runs", "문단1\n\n\n\n문단2", "문단1\n\n문단2"},
		{"strips zero width", "보고​서\uFEFF 제출", "보고서 제출"},
		{"strips control chars", "로그\x00확인\x1f요청", "로그확인요청"},
		{"keeps single newlines", "줄1\n줄2", "줄1\n줄2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"  내일까지   보고서 \r\n\r\n\r\n제출  부탁드립니다 ",
		"평범한 문장입니다.",
		"줄1\n줄2\n\n줄3",
	}
	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestExtractTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		spanType models.LockedSpanType
		original string
	}{
		{"email", "내일까지 user@example.com 으로 보내주세요", models.SpanEmail, "user@example.com"},
		{"url", "자세한 내용은 https://example.com/docs 참고", models.SpanURL, "https://example.com/docs"},
		{"phone", "연락처는 010-1234-5678 입니다", models.SpanPhone, "010-1234-5678"},
		{"korean date", "3월 14일까지 완료 예정입니다", models.SpanDate, "3월 14일"},
		{"hhmm time", "회의는 14:30 시작입니다", models.SpanTime, "14:30"},
		{"money", "비용은 35,000원 입니다", models.SpanMoney, "35,000원"},
		{"uuid", "요청 ID는 550e8400-e29b-41d4-a716-446655440000 입니다", models.SpanUUID, "550e8400-e29b-41d4-a716-446655440000"},
		{"file", "report_final.xlsx 파일 확인 부탁드립니다", models.SpanFile, "report_final.xlsx"},
		{"ticket", "PROJ-123 이슈 관련입니다", models.SpanTicket, "PROJ-123"},
		{"version", "v2.1.3 배포 후 발생했습니다", models.SpanVersion, "v2.1.3"},
		{"quote", "\"긴급 점검\" 공지 보셨나요", models.SpanQuote, "\"긴급 점검\""},
		{"identifier", "getUserProfile 함수가 실패합니다", models.SpanID, "getUserProfile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := Extract(tt.input)
			require.NotEmpty(t, spans)
			found := false
			for _, s := range spans {
				if s.Type == tt.spanType && s.Original == tt.original {
					found = true
				}
			}
			assert.True(t, found, "expected %s span %q in %v", tt.spanType, tt.original, spans)
		})
	}
}

func TestExtractSpansDisjointAndSorted(t *testing.T) {
	text := "3월 14일 14:30에 user@example.com 으로 report.pdf 보내주세요. 비용 35,000원, 문의 010-1234-5678"
	spans := Extract(text)
	require.NotEmpty(t, spans)

	lastEnd := -1
	for _, s := range spans {
		assert.GreaterOrEqual(t, s.Start, lastEnd, "spans must not overlap")
		assert.Less(t, s.Start, s.End)
		assert.Equal(t, s.Original, text[s.Start:s.End])
		lastEnd = s.End
	}
}

func TestExtractLongestMatchWins(t *testing.T) {
	// The date covers "14일", which would otherwise match as a unit number.
	spans := Extract("3월 14일까지입니다")
	require.NotEmpty(t, spans)
	assert.Equal(t, models.SpanDate, spans[0].Type)
	assert.Equal(t, "3월 14일", spans[0].Original)
}

func TestExtractPlaceholderCountersPerType(t *testing.T) {
	spans := Extract("a@b.com 그리고 c@d.com 으로 각각 전송, 파일은 x.pdf 입니다")
	var emails, files []models.LockedSpan
	for _, s := range spans {
		switch s.Type {
		case models.SpanEmail:
			emails = append(emails, s)
		case models.SpanFile:
			files = append(files, s)
		}
	}
	require.Len(t, emails, 2)
	require.Len(t, files, 1)
	assert.Equal(t, "{{EMAIL_1}}", emails[0].Placeholder)
	assert.Equal(t, "{{EMAIL_2}}", emails[1].Placeholder)
	assert.Equal(t, "{{FILE_1}}", files[0].Placeholder)
}

func TestMaskUnmaskRoundTrip(t *testing.T) {
	text := Normalize("내일 3월 14일까지 user@example.com 으로 report.pdf 보내주세요")
	spans := Extract(text)
	require.NotEmpty(t, spans)

	masked := Mask(text, spans)
	for _, s := range spans {
		assert.Contains(t, masked, s.Placeholder)
		assert.NotContains(t, masked, s.Original)
	}

	result := Unmask(masked, spans)
	assert.Equal(t, text, result.Text)
	assert.Empty(t, result.MissingSpans)
}

func TestUnmaskTolerantVariants(t *testing.T) {
	spans := []models.LockedSpan{
		models.NewLockedSpan(1, "3월 14일", models.SpanDate, 1, 0, 0),
	}
	tests := []struct {
		name   string
		output string
	}{
		{"canonical", "기한은 {{DATE_1}} 입니다"},
		{"spaces", "기한은 {{ DATE_1 }} 입니다"},
		{"dash", "기한은 {{DATE-1}} 입니다"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Unmask(tt.output, spans)
			assert.Equal(t, "기한은 3월 14일 입니다", result.Text)
			assert.Empty(t, result.MissingSpans)
		})
	}
}

func TestUnmaskMissingSpan(t *testing.T) {
	spans := []models.LockedSpan{
		models.NewLockedSpan(1, "user@example.com", models.SpanEmail, 1, 0, 0),
	}

	result := Unmask("메일 주소가 사라졌습니다", spans)
	require.Len(t, result.MissingSpans, 1)
	assert.Equal(t, "{{EMAIL_1}}", result.MissingSpans[0].Placeholder)

	// Verbatim original counts as preserved.
	result = Unmask("user@example.com 으로 보내드리겠습니다", spans)
	assert.Empty(t, result.MissingSpans)
}
