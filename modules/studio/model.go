package studio

import (
	"strings"
	"time"
)

// InfluencerSource - 인플루언서 이미지 출처
type InfluencerSource string

const (
	SourceGenerate InfluencerSource = "GENERATE"
	SourceUpload   InfluencerSource = "UPLOAD"
)

func ParseInfluencerSource(value string) (InfluencerSource, bool) {
	switch InfluencerSource(strings.ToUpper(strings.TrimSpace(value))) {
	case SourceGenerate:
		return SourceGenerate, true
	case SourceUpload:
		return SourceUpload, true
	}
	return "", false
}

// AspectRatio - 생성 이미지 비율
type AspectRatio string

const (
	AspectPortrait  AspectRatio = "PORTRAIT"
	AspectSquare    AspectRatio = "SQUARE"
	AspectLandscape AspectRatio = "LANDSCAPE"
)

// Ratio - 서비스에 전달하는 비율 문자열
func (a AspectRatio) Ratio() string {
	switch a {
	case AspectSquare:
		return "1:1"
	case AspectLandscape:
		return "16:9"
	default:
		return "9:16"
	}
}

// ParseAspectRatio - "PORTRAIT" 같은 이름 또는 "9:16" 같은 비율 문자열 모두 허용
func ParseAspectRatio(value string) (AspectRatio, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(AspectPortrait), "9:16":
		return AspectPortrait, true
	case string(AspectSquare), "1:1":
		return AspectSquare, true
	case string(AspectLandscape), "16:9":
		return AspectLandscape, true
	}
	return "", false
}

// State - 세션 필드에서 파생되는 워크플로 상태
type State string

const (
	StateIdle                    State = "IDLE"
	StateAwaitingPortrait        State = "AWAITING_PORTRAIT"
	StatePortraitPendingApproval State = "PORTRAIT_PENDING_APPROVAL"
	StateComposing               State = "COMPOSING"
	StateTranslating             State = "TRANSLATING"
	StateResultReady             State = "RESULT_READY"
	StateError                   State = "ERROR"
)

// 진행 중 라벨
const (
	LabelGeneratingPortrait = "Gerando seu influencer..."
	LabelComposingScene     = "Criando a cena com seu produto..."
	LabelTranslating        = "Traduzindo prompts..."
)

// 입력 검증 메시지
const (
	MsgInfluencerPromptRequired = "Por favor, descreva o influencer que você quer gerar."
	MsgInfluencerImageRequired  = "Por favor, forneça uma imagem do influencer."
	MsgProductImageRequired     = "Por favor, envie uma imagem do produto."
	MsgActionPromptRequired     = "Por favor, descreva como o influencer deve usar o produto."
)

// 기본 입력값
const (
	DefaultInfluencerPrompt = "Uma modelo brasileira, 25 anos, cabelos castanhos, sorrindo, em um fundo neutro de estúdio"
	DefaultNegativePrompt   = "mãos deformadas, texto, marca d'água, feio, duplicado, dentes ruins"
	DefaultActionPrompt     = "vestindo esta camiseta"
	DefaultScenarioPrompt   = "em uma cafeteria moderna em São Paulo"
)

// DownloadFilename - 결과 다운로드 파일명
const DownloadFilename = "influencia-studio-image.png"

// Session - 스튜디오 세션 상태 (메모리 전용, 이미지는 data URL)
type Session struct {
	InfluencerSource InfluencerSource `json:"influencerSource"`
	InfluencerPrompt string           `json:"influencerPrompt"`
	NegativePrompt   string           `json:"negativePrompt"`
	AspectRatio      AspectRatio      `json:"aspectRatio"`
	InfluencerImage  string           `json:"influencerImage,omitempty"`
	ProductImage     string           `json:"productImage,omitempty"`
	ActionPrompt     string           `json:"actionPrompt"`
	ChangeScenario   bool             `json:"changeScenario"`
	ScenarioPrompt   string           `json:"scenarioPrompt"`
	PendingImage     string           `json:"pendingImage,omitempty"`
	ResultImage      string           `json:"resultImage,omitempty"`
	AwaitingApproval bool             `json:"awaitingApproval"`
	IsBusy           bool             `json:"isBusy"`
	BusyLabel        string           `json:"busyLabel,omitempty"`
	LastError        string           `json:"lastError,omitempty"`
}

// NewSession - 기본 프롬프트/비율로 새 세션
func NewSession() Session {
	return Session{
		InfluencerSource: SourceGenerate,
		InfluencerPrompt: DefaultInfluencerPrompt,
		NegativePrompt:   DefaultNegativePrompt,
		AspectRatio:      AspectPortrait,
		ActionPrompt:     DefaultActionPrompt,
		ScenarioPrompt:   DefaultScenarioPrompt,
	}
}

// State - 현재 필드 조합에서 상태 도출
func (s Session) State() State {
	switch {
	case s.IsBusy && s.BusyLabel == LabelGeneratingPortrait:
		return StateAwaitingPortrait
	case s.IsBusy && s.BusyLabel == LabelTranslating:
		return StateTranslating
	case s.IsBusy:
		return StateComposing
	case s.AwaitingApproval:
		return StatePortraitPendingApproval
	case s.LastError != "":
		return StateError
	case s.ResultImage != "":
		return StateResultReady
	default:
		return StateIdle
	}
}

// DisplayImage - 화면에 표시되는 이미지 (결과 > 후보 > 인플루언서)
func (s Session) DisplayImage() string {
	switch {
	case s.ResultImage != "":
		return s.ResultImage
	case s.PendingImage != "":
		return s.PendingImage
	default:
		return s.InfluencerImage
	}
}

// Snapshot - 외부에 노출되는 세션 스냅샷
type Snapshot struct {
	ID      string `json:"id"`
	Version uint64 `json:"version"`
	State   State  `json:"state"`
	Session
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
