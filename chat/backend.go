package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotConfigured is returned by a backend that has no credentials.
var ErrNotConfigured = errors.New("chat backend not configured")

// Request is one remote completion: the system instruction, the retained
// history and the new question.
type Request struct {
	System   string
	History  []Turn
	Question string
}

// Backend produces a completion for a request. Implementations must honour
// ctx cancellation.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx response from a remote model.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat: remote returned status %d: %s", e.Code, e.Body)
}

// Failure names the category of a remote failure shown to the user.
type Failure int

const (
	FailureNone Failure = iota
	FailureAuth
	FailureRateLimit
	FailureQuota
	FailureTimeout
	FailureUnavailable
	FailureNotConfigured
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureAuth:
		return "auth"
	case FailureRateLimit:
		return "rate_limit"
	case FailureQuota:
		return "quota"
	case FailureTimeout:
		return "timeout"
	case FailureNotConfigured:
		return "not_configured"
	}
	return "unavailable"
}

// Message is the user-facing notice for the failure category.
func (f Failure) Message() string {
	switch f {
	case FailureAuth:
		return "API 키 인증에 실패했습니다. API 키를 확인해주세요."
	case FailureRateLimit:
		return "API 호출 한도를 초과했습니다. 잠시 후 다시 시도해주세요."
	case FailureQuota:
		return "API 사용량 한도를 초과했습니다. 계정 설정을 확인해주세요."
	case FailureTimeout:
		return "응답 시간이 초과되었습니다. 잠시 후 다시 시도해주세요."
	case FailureNotConfigured:
		return "API 키가 설정되지 않아 상세한 답변을 제공할 수 없습니다. 환경변수를 확인해주세요."
	case FailureNone:
		return ""
	}
	return "AI 서비스에 일시적으로 연결할 수 없습니다. 기본 분석 정보로 안내해드립니다."
}

// Classify maps a backend error to a failure category.
func Classify(err error) Failure {
	if err == nil {
		return FailureNone
	}

	if errors.Is(err, ErrNotConfigured) {
		return FailureNotConfigured
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return FailureAuth
		case http.StatusTooManyRequests:
			if strings.Contains(strings.ToLower(se.Body), "quota") {
				return FailureQuota
			}
			return FailureRateLimit
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return FailureTimeout
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "authentication"), strings.Contains(msg, "api key"), strings.Contains(msg, "api_key"):
		return FailureAuth
	case strings.Contains(msg, "rate_limit"), strings.Contains(msg, "rate limit"):
		return FailureRateLimit
	case strings.Contains(msg, "quota"), strings.Contains(msg, "resource_exhausted"):
		return FailureQuota
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return FailureTimeout
	}

	return FailureUnavailable
}
