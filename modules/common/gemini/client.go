package gemini

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"influencia-studio-server/modules/common/config"
)

// Models - genai.Models 중 실제로 쓰는 호출만 추린 인터페이스 (테스트에서 교체)
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// NewClient - Gemini API 키 기반 genai 클라이언트 생성
func NewClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.GeminiAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.GeminiHTTPTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log.Info().Msgf("✅ Genai client initialized (timeout: %s)", cfg.GeminiHTTPTimeout)
	return client, nil
}
