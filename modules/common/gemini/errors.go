package gemini

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// IsRateLimited - 429 Rate Limit 에러인지 확인
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}

	errStr := strings.ToLower(err.Error())
	// Gemini API 429 에러 패턴 체크
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota")
}

// APIMessage - 서버가 돌려준 에러 메시지 (없으면 빈 문자열)
func APIMessage(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return strings.TrimSpace(apiErr.Message)
	}
	return ""
}

// Outcome - 메트릭 라벨용 결과 분류
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsRateLimited(err):
		return "rate_limited"
	default:
		return "error"
	}
}
