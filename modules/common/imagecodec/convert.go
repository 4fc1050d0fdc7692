package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG 디코더 등록
	"image/png"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp" // WebP 디코더 등록

	"influencia-studio-server/modules/common/apperr"
)

// ToPNG - data URL 이미지를 PNG 바이너리로 변환 (다운로드용)
// 이미 PNG 면 디코딩 없이 그대로 반환
func ToPNG(handle string) ([]byte, error) {
	mimeType, data, err := DecodeBytes(handle)
	if err != nil {
		return nil, err
	}

	if mimeType == MIMETypePNG && bytes.HasPrefix(data, pngSignature) {
		return data, nil
	}

	// 이미지 디코드 (WebP, PNG, JPEG 자동 감지)
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.IO(LoadFailedMessage, fmt.Errorf("failed to decode %s: %w", mimeType, err))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperr.IO(LoadFailedMessage, fmt.Errorf("failed to encode PNG: %w", err))
	}

	log.Debug().Msgf("🔄 Image converted %s → png: %d bytes → %d bytes", format, len(data), buf.Len())
	return buf.Bytes(), nil
}
