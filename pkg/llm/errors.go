package llm

import (
	"errors"
	"strings"
)

// ErrorKind classifies an AI service failure. The set is closed; callers may
// key retry or logging policy off it.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindTimeout   ErrorKind = "timeout"
	KindNetwork   ErrorKind = "network"
	KindOther     ErrorKind = "other"
)

// TransformError is a user-facing AI service failure. Message is Korean and
// safe to return to clients; Err keeps the provider error for logs.
type TransformError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *TransformError) Error() string { return e.Message }

func (e *TransformError) Unwrap() error { return e.Err }

// NewTransformError wraps a provider error with a kind and a user-facing
// message.
func NewTransformError(kind ErrorKind, message string, err error) *TransformError {
	return &TransformError{Kind: kind, Message: message, Err: err}
}

// wrapAPIError classifies a raw provider error into a TransformError.
func wrapAPIError(err error) *TransformError {
	kind, message := classifyAPIError(err)
	return &TransformError{Kind: kind, Message: message, Err: err}
}

// IsTransformError reports whether err is (or wraps) a TransformError.
func IsTransformError(err error) bool {
	var te *TransformError
	return errors.As(err, &te)
}

// classifyAPIError maps provider errors to a kind and a user-facing Korean
// message.
func classifyAPIError(err error) (ErrorKind, string) {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "401") || strings.Contains(lower, "api key") || strings.Contains(lower, "unauthorized"):
		return KindAuth, "AI 서비스 인증 오류: API 키가 유효하지 않습니다. 서버 설정을 확인해주세요."
	case strings.Contains(msg, "429") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "quota"):
		return KindRateLimit, "AI 서비스 요청 한도 초과: 잠시 후 다시 시도해주세요."
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") || strings.Contains(lower, "deadline exceeded"):
		return KindTimeout, "AI 서비스 응답 시간 초과: 잠시 후 다시 시도해주세요."
	case strings.Contains(lower, "connect") || strings.Contains(lower, "network"):
		return KindNetwork, "AI 서비스 연결 실패: 네트워크 상태를 확인해주세요."
	default:
		return KindOther, "AI 변환 서비스에 일시적인 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	}
}
