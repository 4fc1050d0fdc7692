package imagecodec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"influencia-studio-server/modules/common/apperr"
)

const (
	MIMETypePNG  = "image/png"
	MIMETypeJPEG = "image/jpeg"
	MIMETypeWebP = "image/webp"
)

// LoadFailedMessage - 파일 읽기/디코딩 실패 시 사용자 메시지
const LoadFailedMessage = "Falha ao carregar a imagem."

// IsSupported - 업로드 허용 포맷 (PNG, JPEG, WEBP)
func IsSupported(mimeType string) bool {
	switch normalizeMIME(mimeType) {
	case MIMETypePNG, MIMETypeJPEG, MIMETypeWebP:
		return true
	}
	return false
}

// EncodeFile - 업로드된 파일을 data URL 로 변환
// declaredMIME 이 비어 있으면 바이너리 시그니처로 추정
func EncodeFile(r io.Reader, declaredMIME string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", apperr.IO(LoadFailedMessage, fmt.Errorf("read image: %w", err))
	}
	if len(data) == 0 {
		return "", apperr.IO(LoadFailedMessage, fmt.Errorf("read image: empty file"))
	}
	return EncodeBytes(data, declaredMIME), nil
}

// EncodeBytes - 바이너리를 data:<mime>;base64,<payload> 형태로 인코딩
func EncodeBytes(data []byte, mimeType string) string {
	mimeType = normalizeMIME(mimeType)
	if mimeType == "" {
		mimeType = sniffBytes(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeForTransport - data URL 을 (mimeType, base64 payload) 로 분리
// 헤더가 없는 raw base64 는 시그니처로 mime 을 추정함
func DecodeForTransport(handle string) (mimeType, payload string) {
	header, data, _ := strings.Cut(handle, ",")
	if data == "" {
		return SniffMIME(header), header
	}
	if mimeType = headerMIME(header); mimeType != "" {
		return mimeType, data
	}
	return SniffMIME(data), data
}

// DecodeBytes - data URL 을 mime 과 원본 바이너리로 디코딩
func DecodeBytes(handle string) (string, []byte, error) {
	mimeType, payload := DecodeForTransport(handle)
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", nil, apperr.IO(LoadFailedMessage, fmt.Errorf("decode base64 image: %w", err))
	}
	if len(data) == 0 {
		return "", nil, apperr.IO(LoadFailedMessage, fmt.Errorf("decode base64 image: empty payload"))
	}
	return mimeType, data, nil
}

// headerMIME - "data:image/jpeg;base64" 에서 image/jpeg 추출
func headerMIME(header string) string {
	_, rest, ok := strings.Cut(header, ":")
	if !ok {
		return ""
	}
	mimeType, _, ok := strings.Cut(rest, ";")
	if !ok {
		return ""
	}
	return normalizeMIME(mimeType)
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "image/jpg" {
		return MIMETypeJPEG
	}
	return mimeType
}

var (
	pngSignature  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	jpegSignature = []byte{0xFF, 0xD8, 0xFF}
)

// SniffMIME - base64 앞부분을 디코딩해서 시그니처 확인, 판별 불가 시 PNG
func SniffMIME(payload string) string {
	prefix := strings.TrimSpace(payload)
	if len(prefix) > 24 {
		prefix = prefix[:24]
	}
	prefix = prefix[:len(prefix)-len(prefix)%4]

	head, err := base64.StdEncoding.DecodeString(prefix)
	if err != nil {
		return MIMETypePNG
	}
	return sniffBytes(head)
}

func sniffBytes(head []byte) string {
	if mimeType, ok := DetectMIME(head); ok {
		return mimeType
	}
	return MIMETypePNG
}

// DetectMIME - 시그니처가 PNG/JPEG/WEBP 중 하나일 때만 ok
func DetectMIME(data []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return MIMETypePNG, true
	case bytes.HasPrefix(data, jpegSignature):
		return MIMETypeJPEG, true
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return MIMETypeWebP, true
	}
	return "", false
}
