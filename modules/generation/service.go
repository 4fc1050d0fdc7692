package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"influencia-studio-server/modules/common/apperr"
	"influencia-studio-server/modules/common/config"
	"influencia-studio-server/modules/common/gemini"
	"influencia-studio-server/modules/common/imagecodec"
	"influencia-studio-server/modules/common/logger"
	"influencia-studio-server/modules/common/metrics"
)

// 메트릭/로그용 작업 이름
const (
	OpGeneratePortrait = "generate_portrait"
	OpComposeScene     = "compose_scene"
	OpTranslateText    = "translate_text"
)

// 사용자 노출 메시지
const (
	MsgPortraitEmpty   = "Nenhum influencer foi gerado. Tente um prompt diferente."
	MsgPortraitFailed  = "Falha ao gerar o influencer com a API."
	MsgComposeEmpty    = "A composição não produziu uma imagem. Tente novamente com um prompt diferente."
	MsgComposeTextOnly = "A API retornou um texto em vez de uma imagem: \"%s\""
	MsgComposeFailed   = "Falha ao mesclar as imagens com a API."
	MsgTranslateFailed = "Falha ao traduzir o texto."
)

const translateTemperature = 0.2

// Options - 작업별 모델 이름
type Options struct {
	PortraitModel  string
	ComposeModel   string
	TranslateModel string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PortraitModel:  cfg.GeminiPortraitModel,
		ComposeModel:   cfg.GeminiComposeModel,
		TranslateModel: cfg.GeminiTranslateModel,
	}
}

// Service - 생성형 이미지 서비스 호출 (단발 요청, 재시도 없음)
type Service struct {
	models  gemini.Models
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewService(models gemini.Models, opts Options, l zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		models:  models,
		opts:    opts,
		log:     logger.Component(l, "generation"),
		metrics: m,
	}
}

// GeneratePortrait - 프롬프트로 인플루언서 전신 이미지 1장 생성
func (s *Service) GeneratePortrait(ctx context.Context, prompt, aspectRatio, negativePrompt string) (handle string, err error) {
	start := time.Now()
	defer func() { s.observe(OpGeneratePortrait, start, err) }()

	fullPrompt := BuildPortraitPrompt(prompt, negativePrompt)
	s.log.Info().Msgf("🎨 Calling %s (aspect-ratio: %s, prompt length: %d)", s.opts.PortraitModel, aspectRatio, len(fullPrompt))

	resp, err := s.models.GenerateImages(ctx, s.opts.PortraitModel, fullPrompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: imagecodec.MIMETypePNG,
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("❌ Portrait generation failed")
		return "", apperr.Service(MsgPortraitFailed, fmt.Errorf("generate images: %w", err))
	}

	if resp != nil {
		for _, generated := range resp.GeneratedImages {
			if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
				if generated != nil && generated.RAIFilteredReason != "" {
					s.log.Warn().Msgf("⚠️  Portrait filtered: %s", generated.RAIFilteredReason)
				}
				continue
			}
			s.log.Info().Msgf("✅ Received portrait: %d bytes", len(generated.Image.ImageBytes))
			return imagecodec.EncodeBytes(generated.Image.ImageBytes, generated.Image.MIMEType), nil
		}
	}

	return "", apperr.EmptyResult(MsgPortraitEmpty)
}

// ComposeScene - 인플루언서 이미지에 제품을 입혀 한 장의 장면으로 합성
// scenarioPrompt 가 비어 있으면 원래 배경 유지
func (s *Service) ComposeScene(ctx context.Context, influencer, product, actionPrompt, scenarioPrompt string) (handle string, err error) {
	start := time.Now()
	defer func() { s.observe(OpComposeScene, start, err) }()

	influencerMIME, influencerData, err := imagecodec.DecodeBytes(influencer)
	if err != nil {
		return "", err
	}
	productMIME, productData, err := imagecodec.DecodeBytes(product)
	if err != nil {
		return "", err
	}

	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(influencerData, influencerMIME),
		genai.NewPartFromBytes(productData, productMIME),
		genai.NewPartFromText(BuildComposePrompt(actionPrompt, scenarioPrompt)),
	}, genai.RoleUser)

	s.log.Info().Msgf("📤 Sending compose request to %s (influencer: %s %d bytes, product: %s %d bytes, change background: %v)",
		s.opts.ComposeModel, influencerMIME, len(influencerData), productMIME, len(productData), strings.TrimSpace(scenarioPrompt) != "")

	resp, err := s.models.GenerateContent(ctx, s.opts.ComposeModel, []*genai.Content{content}, &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
	})
	if err != nil {
		s.log.Error().Err(err).Msg("❌ Compose request failed")
		// 원인 메시지를 사용자 메시지에 유지 (API 에러가 아니면 err 문자열)
		cause := gemini.APIMessage(err)
		if cause == "" {
			cause = strings.TrimSpace(err.Error())
		}
		message := MsgComposeFailed
		if cause != "" {
			message = fmt.Sprintf("%s %s", MsgComposeFailed, cause)
		}
		return "", apperr.Service(message, fmt.Errorf("generate content: %w", err))
	}

	if blob := firstInlineImage(resp); blob != nil {
		s.log.Info().Msgf("✅ Received composed image: %s %d bytes", blob.MIMEType, len(blob.Data))
		return imagecodec.EncodeBytes(blob.Data, blob.MIMEType), nil
	}

	if text := strings.TrimSpace(responseText(resp)); text != "" {
		s.log.Warn().Msgf("⚠️  Compose returned text instead of image: %s", text)
		return "", apperr.EmptyResult(fmt.Sprintf(MsgComposeTextOnly, text))
	}
	return "", apperr.EmptyResult(MsgComposeEmpty)
}

// TranslateText - 포르투갈어 프롬프트를 영어로 번역 (빈 입력은 요청 없이 "")
func (s *Service) TranslateText(ctx context.Context, text string) (translated string, err error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	start := time.Now()
	defer func() { s.observe(OpTranslateText, start, err) }()

	resp, err := s.models.GenerateContent(ctx, s.opts.TranslateModel, genai.Text(BuildTranslatePrompt(text)), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](translateTemperature),
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr[int32](0),
		},
	})
	if err != nil {
		s.log.Error().Err(err).Msg("❌ Translation failed")
		return "", apperr.Translation(MsgTranslateFailed, fmt.Errorf("generate content: %w", err))
	}

	return strings.TrimSpace(responseText(resp)), nil
}

func (s *Service) observe(operation string, start time.Time, err error) {
	outcome := gemini.Outcome(err)
	if apperr.KindOf(err) == apperr.KindEmptyResult {
		outcome = "empty"
	}
	s.metrics.ObserveGeneration(operation, outcome, time.Since(start))
}

// firstInlineImage - 첫 번째 candidate 에서 InlineData 파트 검색
func firstInlineImage(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil
	}
	for _, part := range candidate.Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Text()
}
