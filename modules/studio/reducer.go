package studio

import "golang.org/x/text/unicode/norm"

// Action - 세션에 적용되는 이벤트
type Action interface {
	actionName() string
}

// UpdateInputs - nil 이 아닌 필드만 반영
type UpdateInputs struct {
	InfluencerPrompt *string      `json:"influencerPrompt,omitempty"`
	NegativePrompt   *string      `json:"negativePrompt,omitempty"`
	AspectRatio      *AspectRatio `json:"aspectRatio,omitempty"`
	ActionPrompt     *string      `json:"actionPrompt,omitempty"`
	ChangeScenario   *bool        `json:"changeScenario,omitempty"`
	ScenarioPrompt   *string      `json:"scenarioPrompt,omitempty"`
}

type (
	SetSource          struct{ Source InfluencerSource }
	UploadInfluencer   struct{ Image string }
	UploadProduct      struct{ Image string }
	ResetInfluencer    struct{}
	BeginPrimary       struct{}
	StartBusy          struct{ Label string }
	PortraitProduced   struct{ Image string }
	SceneComposed      struct{ Image string }
	Failed             struct{ Message string }
	Approve            struct{}
	Discard            struct{}
	Edit               struct{}
	Reset              struct{}
	ActionTranslated   struct{ Text string }
	ScenarioTranslated struct{ Text string }
	FinishBusy         struct{}
)

func (UpdateInputs) actionName() string       { return "update_inputs" }
func (SetSource) actionName() string          { return "set_source" }
func (UploadInfluencer) actionName() string   { return "upload_influencer" }
func (UploadProduct) actionName() string      { return "upload_product" }
func (ResetInfluencer) actionName() string    { return "reset_influencer" }
func (BeginPrimary) actionName() string       { return "begin_primary" }
func (StartBusy) actionName() string          { return "start_busy" }
func (PortraitProduced) actionName() string   { return "portrait_produced" }
func (SceneComposed) actionName() string      { return "scene_composed" }
func (Failed) actionName() string             { return "failed" }
func (Approve) actionName() string            { return "approve" }
func (Discard) actionName() string            { return "discard" }
func (Edit) actionName() string               { return "edit" }
func (Reset) actionName() string              { return "reset" }
func (ActionTranslated) actionName() string   { return "action_translated" }
func (ScenarioTranslated) actionName() string { return "scenario_translated" }
func (FinishBusy) actionName() string         { return "finish_busy" }

// Apply - 순수 함수: 입력 세션은 변경하지 않고 새 세션 반환
func Apply(s Session, action Action) Session {
	switch a := action.(type) {
	case UpdateInputs:
		if a.InfluencerPrompt != nil {
			s.InfluencerPrompt = normalizeText(*a.InfluencerPrompt)
		}
		if a.NegativePrompt != nil {
			s.NegativePrompt = normalizeText(*a.NegativePrompt)
		}
		if a.AspectRatio != nil {
			s.AspectRatio = *a.AspectRatio
		}
		if a.ActionPrompt != nil {
			s.ActionPrompt = normalizeText(*a.ActionPrompt)
		}
		if a.ChangeScenario != nil {
			s.ChangeScenario = *a.ChangeScenario
		}
		if a.ScenarioPrompt != nil {
			s.ScenarioPrompt = normalizeText(*a.ScenarioPrompt)
		}

	case SetSource:
		// 출처를 바꾸면 기존 인플루언서/후보는 무효
		s.InfluencerSource = a.Source
		s.InfluencerImage = ""
		s.PendingImage = ""
		s.AwaitingApproval = false

	case UploadInfluencer:
		s.InfluencerImage = a.Image
		s.PendingImage = ""
		s.AwaitingApproval = false

	case UploadProduct:
		s.ProductImage = a.Image

	case ResetInfluencer:
		s.InfluencerImage = ""
		s.PendingImage = ""
		s.ResultImage = ""
		s.AwaitingApproval = false

	case BeginPrimary:
		s.LastError = ""
		s.ResultImage = ""

	case StartBusy:
		s.IsBusy = true
		s.BusyLabel = a.Label
		s.LastError = ""

	case PortraitProduced:
		s.IsBusy = false
		s.BusyLabel = ""
		// 요청 중에 업로드/출처 변경이 있었으면 늦게 도착한 후보는 버림
		if s.InfluencerImage != "" || s.InfluencerSource == SourceUpload {
			return s
		}
		s.PendingImage = a.Image
		s.AwaitingApproval = true

	case SceneComposed:
		s.IsBusy = false
		s.BusyLabel = ""
		s.ResultImage = a.Image
		s.AwaitingApproval = false

	case Failed:
		s.IsBusy = false
		s.BusyLabel = ""
		s.LastError = a.Message

	case Approve:
		if !s.AwaitingApproval || s.PendingImage == "" {
			return s
		}
		s.InfluencerImage = s.PendingImage
		s.PendingImage = ""
		s.AwaitingApproval = false

	case Discard:
		s.PendingImage = ""
		s.AwaitingApproval = false

	case Edit:
		if s.ResultImage == "" || s.AwaitingApproval {
			return s
		}
		s.InfluencerSource = SourceUpload
		s.InfluencerImage = s.ResultImage
		s.ResultImage = ""
		s.AwaitingApproval = false

	case Reset:
		// 프롬프트와 비율은 유지
		s.InfluencerSource = SourceGenerate
		s.InfluencerImage = ""
		s.ProductImage = ""
		s.PendingImage = ""
		s.ResultImage = ""
		s.AwaitingApproval = false
		s.LastError = ""

	case ActionTranslated:
		s.ActionPrompt = a.Text

	case ScenarioTranslated:
		s.ScenarioPrompt = a.Text

	case FinishBusy:
		s.IsBusy = false
		s.BusyLabel = ""
	}
	return s
}

// normalizeText - 클라이언트마다 다른 조합형(NFD) 입력을 NFC 로 통일
func normalizeText(value string) string {
	return norm.NFC.String(value)
}
