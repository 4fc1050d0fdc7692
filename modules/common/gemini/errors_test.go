package gemini

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"api 429", fmt.Errorf("generate: %w", genai.APIError{Code: 429, Message: "Resource has been exhausted"}), true},
		{"api 500", genai.APIError{Code: 500, Message: "internal"}, false},
		{"quota text", errors.New("Quota exceeded for project"), true},
		{"rate limit text", errors.New("rate limit reached"), true},
		{"other", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimited(tt.err))
		})
	}
}

func TestAPIMessage(t *testing.T) {
	err := fmt.Errorf("compose: %w", genai.APIError{Code: 400, Message: " Image too large "})
	assert.Equal(t, "Image too large", APIMessage(err))
	assert.Equal(t, "", APIMessage(errors.New("plain")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "rate_limited", Outcome(genai.APIError{Code: 429}))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}
