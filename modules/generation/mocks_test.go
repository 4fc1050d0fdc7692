package generation

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"influencia-studio-server/modules/common/metrics"
)

// --- Mocks ---

type contentCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type imagesCall struct {
	model  string
	prompt string
	config *genai.GenerateImagesConfig
}

// fakeModels - gemini.Models 테스트 구현
type fakeModels struct {
	mu sync.Mutex

	generateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	generateImagesFunc  func(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)

	contentCalls []contentCall
	imagesCalls  []imagesCall
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	f.contentCalls = append(f.contentCalls, contentCall{model: model, contents: contents, config: config})
	f.mu.Unlock()
	if f.generateContentFunc == nil {
		return &genai.GenerateContentResponse{}, nil
	}
	return f.generateContentFunc(ctx, model, contents, config)
}

func (f *fakeModels) GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.mu.Lock()
	f.imagesCalls = append(f.imagesCalls, imagesCall{model: model, prompt: prompt, config: config})
	f.mu.Unlock()
	if f.generateImagesFunc == nil {
		return &genai.GenerateImagesResponse{}, nil
	}
	return f.generateImagesFunc(ctx, model, prompt, config)
}

func newTestService(models *fakeModels) (*Service, *metrics.Metrics) {
	m := metrics.New()
	svc := NewService(models, Options{
		PortraitModel:  "imagen-4.0-generate-001",
		ComposeModel:   "gemini-2.5-flash-image-preview",
		TranslateModel: "gemini-2.5-flash",
	}, zerolog.Nop(), m)
	return svc, m
}

func partsResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
		}},
	}
}
