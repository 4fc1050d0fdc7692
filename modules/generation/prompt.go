package generation

import (
	"fmt"
	"strings"
)

const portraitQualifiers = "photorealistic, full body shot, high fashion, 8k, ultra-detailed"

// BuildPortraitPrompt - 인플루언서 생성 프롬프트
// negative prompt 는 공백이 아닐 때만 마지막 절로 붙임
func BuildPortraitPrompt(prompt, negativePrompt string) string {
	fullPrompt := fmt.Sprintf("%s, %s", prompt, portraitQualifiers)
	if strings.TrimSpace(negativePrompt) != "" {
		fullPrompt += ". Negative prompt: " + negativePrompt
	}
	return fullPrompt
}

// BuildComposePrompt - 인플루언서 + 제품 합성 지시문
// scenarioPrompt 가 비어 있으면 기존 배경 유지
func BuildComposePrompt(actionPrompt, scenarioPrompt string) string {
	var sb strings.Builder

	sb.WriteString(`INSTRUCTION: Your task is to perform a realistic "in-painting" operation.

GOAL: Edit the first image (the person) to make them wear or use the product from the second image, as described by the action prompt.

`)
	fmt.Fprintf(&sb, "ACTION PROMPT: \"%s\"\n\n", actionPrompt)
	sb.WriteString(`RULES:
1. **REPLACE CLOTHING:** You MUST replace the existing clothing on the person with the product. Do NOT overlay the new product on top of old clothes. The final image should show only the new product.
2. **PRESERVE IDENTITY:** It is absolutely crucial to maintain the person's original face, hair, body shape, and skin tone. Do not change the person.
3. **REALISM:** The final composition must be photorealistic. Pay close attention to lighting, shadows, and textures to ensure the product looks natural on the person.
`)

	if strings.TrimSpace(scenarioPrompt) != "" {
		fmt.Fprintf(&sb, "4. **CHANGE BACKGROUND:** After placing the product, you must change the entire background to a new scene: \"%s\". The lighting on the person must match the new background.", scenarioPrompt)
	} else {
		sb.WriteString("4. **MAINTAIN BACKGROUND:** Keep the original background from the first image. Ensure lighting on the new product matches this existing background.")
	}

	return sb.String()
}

// BuildTranslatePrompt - 포르투갈어 → 영어 번역 요청
func BuildTranslatePrompt(text string) string {
	return fmt.Sprintf("Translate the following Portuguese text to English, keeping the original meaning and tone: \"%s\"", text)
}
