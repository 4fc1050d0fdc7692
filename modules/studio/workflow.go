package studio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"influencia-studio-server/modules/common/apperr"
	"influencia-studio-server/modules/common/metrics"
)

// 상태를 바꾸지 않고 거절되는 호출
var (
	ErrBusy                = errors.New("studio: another request is in flight")
	ErrNotAwaitingApproval = errors.New("studio: no candidate portrait to approve")
	ErrNoResult            = errors.New("studio: no composed result available")
)

// Generator - 생성 클라이언트 (generation.Service)
type Generator interface {
	GeneratePortrait(ctx context.Context, prompt, aspectRatio, negativePrompt string) (string, error)
	ComposeScene(ctx context.Context, influencer, product, actionPrompt, scenarioPrompt string) (string, error)
	TranslateText(ctx context.Context, text string) (string, error)
}

type jobKind int

const (
	jobPortrait jobKind = iota + 1
	jobCompose
)

// job - 락 밖에서 실행할 외부 호출 입력 (시작 시점의 세션 값 복사본)
type job struct {
	kind           jobKind
	prompt         string
	aspectRatio    string
	negativePrompt string
	influencer     string
	product        string
	actionPrompt   string
	scenarioPrompt string
}

// Workflow - 세션 하나의 유일한 writer
// 외부 호출 동안에는 락을 풀고 isBusy 로만 재진입을 막음
type Workflow struct {
	mu        sync.Mutex
	id        string
	session   Session
	version   uint64
	createdAt time.Time
	updatedAt time.Time

	gen      Generator
	log      zerolog.Logger
	metrics  *metrics.Metrics
	onChange func(Snapshot)
	now      func() time.Time
}

func NewWorkflow(id string, gen Generator, l zerolog.Logger, m *metrics.Metrics, onChange func(Snapshot)) *Workflow {
	now := time.Now()
	return &Workflow{
		id:        id,
		session:   NewSession(),
		createdAt: now,
		updatedAt: now,
		gen:       gen,
		log:       l.With().Str("session", id).Logger(),
		metrics:   m,
		onChange:  onChange,
		now:       time.Now,
	}
}

func (w *Workflow) ID() string {
	return w.id
}

// Snapshot - 현재 세션 복사본
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// IsBusy - 진행 중인 외부 호출 여부
func (w *Workflow) IsBusy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session.IsBusy
}

// LastActivity - 마지막 상태 변경 시각
func (w *Workflow) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updatedAt
}

// Generate - 기본 액션: 인플루언서 생성 또는 장면 합성
func (w *Workflow) Generate(ctx context.Context) error {
	w.mu.Lock()
	if err := w.checkIdleLocked("generate"); err != nil {
		w.mu.Unlock()
		return err
	}
	// 승인 대기 중인 후보는 버리고 다시 진행
	if w.session.AwaitingApproval {
		w.applyLocked(Discard{})
	}
	j, err := w.prepareLocked()
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.notify(snap)
	if err != nil {
		return err
	}
	return w.run(ctx, j)
}

// Approve - 후보 이미지를 인플루언서로 확정
func (w *Workflow) Approve() error {
	w.mu.Lock()
	if w.session.IsBusy {
		w.mu.Unlock()
		w.metrics.WorkflowRejected("approve", "busy")
		return ErrBusy
	}
	if !w.session.AwaitingApproval || w.session.PendingImage == "" {
		w.mu.Unlock()
		w.metrics.WorkflowRejected("approve", "not_awaiting_approval")
		return ErrNotAwaitingApproval
	}
	w.applyLocked(Approve{})
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.log.Info().Msg("👍 Portrait approved")
	w.notify(snap)
	return nil
}

// Regenerate - 후보를 버리고 같은 입력으로 다시 생성
func (w *Workflow) Regenerate(ctx context.Context) error {
	w.mu.Lock()
	if w.session.IsBusy {
		w.mu.Unlock()
		w.metrics.WorkflowRejected("regenerate", "busy")
		return ErrBusy
	}
	if !w.session.AwaitingApproval {
		w.mu.Unlock()
		w.metrics.WorkflowRejected("regenerate", "not_awaiting_approval")
		return ErrNotAwaitingApproval
	}
	w.applyLocked(Discard{})
	j, err := w.prepareLocked()
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.log.Info().Msg("🔄 Portrait discarded, regenerating")
	w.notify(snap)
	if err != nil {
		return err
	}
	return w.run(ctx, j)
}

// Edit - 현재 결과를 새 인플루언서로 지정 (다음 기본 액션은 바로 합성)
func (w *Workflow) Edit() error {
	w.mu.Lock()
	if w.session.IsBusy {
		w.mu.Unlock()
		w.metrics.WorkflowRejected("edit", "busy")
		return ErrBusy
	}
	if w.session.ResultImage == "" || w.session.AwaitingApproval {
		w.mu.Unlock()
		w.metrics.WorkflowRejected("edit", "no_result")
		return ErrNoResult
	}
	w.applyLocked(Edit{})
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.log.Info().Msg("✏️  Result redesignated as influencer")
	w.notify(snap)
	return nil
}

// Reset - 이미지/승인 상태 초기화 (프롬프트, 비율 유지)
func (w *Workflow) Reset() error {
	return w.mutate("reset", true, Reset{})
}

// ResetInfluencer - 인플루언서/후보/결과만 초기화
func (w *Workflow) ResetInfluencer() error {
	return w.mutate("reset_influencer", true, ResetInfluencer{})
}

// SetInfluencerSource - 출처 변경 (기존 인플루언서 이미지는 제거)
func (w *Workflow) SetInfluencerSource(source InfluencerSource) error {
	return w.mutate("set_source", false, SetSource{Source: source})
}

// UploadInfluencer - 업로드 이미지를 바로 인플루언서로 지정
func (w *Workflow) UploadInfluencer(handle string) error {
	return w.mutate("upload_influencer", false, UploadInfluencer{Image: handle})
}

func (w *Workflow) UploadProduct(handle string) error {
	return w.mutate("upload_product", false, UploadProduct{Image: handle})
}

func (w *Workflow) UpdateInputs(patch UpdateInputs) error {
	return w.mutate("update_inputs", false, patch)
}

// Translate - actionPrompt, (changeScenario 일 때) scenarioPrompt 순서로 번역
// 중간 실패 시 이미 반영된 번역은 되돌리지 않음
func (w *Workflow) Translate(ctx context.Context) error {
	w.mu.Lock()
	if w.session.IsBusy {
		w.mu.Unlock()
		w.metrics.WorkflowRejected("translate", "busy")
		return ErrBusy
	}
	s := w.session
	if s.ActionPrompt == "" && s.ScenarioPrompt == "" {
		w.mu.Unlock()
		return nil
	}
	actionPrompt := s.ActionPrompt
	scenarioPrompt := ""
	if s.ChangeScenario {
		scenarioPrompt = s.ScenarioPrompt
	}
	w.applyLocked(StartBusy{Label: LabelTranslating})
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.notify(snap)
	ctx = context.WithoutCancel(ctx)

	translated, err := w.gen.TranslateText(ctx, actionPrompt)
	if err != nil {
		w.update(Failed{Message: apperr.UserMessage(err)})
		w.log.Error().Err(err).Msg("❌ Action prompt translation failed")
		return err
	}
	w.update(ActionTranslated{Text: translated})

	if scenarioPrompt != "" {
		translated, err = w.gen.TranslateText(ctx, scenarioPrompt)
		if err != nil {
			w.update(Failed{Message: apperr.UserMessage(err)})
			w.log.Error().Err(err).Msg("❌ Scenario prompt translation failed")
			return err
		}
		w.update(ScenarioTranslated{Text: translated})
	}

	w.update(FinishBusy{})
	w.log.Info().Msg("🌐 Prompts translated")
	return nil
}

// checkIdleLocked - 진행 중이면 거절
func (w *Workflow) checkIdleLocked(action string) error {
	if w.session.IsBusy {
		w.metrics.WorkflowRejected(action, "busy")
		w.log.Debug().Msgf("⏳ %s ignored: busy (%s)", action, w.session.BusyLabel)
		return ErrBusy
	}
	return nil
}

// prepareLocked - 분기 결정 + 입력 검증 + busy 설정
func (w *Workflow) prepareLocked() (job, error) {
	w.applyLocked(BeginPrimary{})
	s := w.session

	if s.InfluencerSource == SourceGenerate && s.InfluencerImage == "" {
		if strings.TrimSpace(s.InfluencerPrompt) == "" {
			return job{}, w.rejectLocked(MsgInfluencerPromptRequired)
		}
		w.applyLocked(StartBusy{Label: LabelGeneratingPortrait})
		return job{
			kind:           jobPortrait,
			prompt:         s.InfluencerPrompt,
			aspectRatio:    s.AspectRatio.Ratio(),
			negativePrompt: s.NegativePrompt,
		}, nil
	}

	switch {
	case s.InfluencerImage == "":
		return job{}, w.rejectLocked(MsgInfluencerImageRequired)
	case s.ProductImage == "":
		return job{}, w.rejectLocked(MsgProductImageRequired)
	case strings.TrimSpace(s.ActionPrompt) == "":
		return job{}, w.rejectLocked(MsgActionPromptRequired)
	}

	scenarioPrompt := ""
	if s.ChangeScenario {
		scenarioPrompt = s.ScenarioPrompt
	}
	w.applyLocked(StartBusy{Label: LabelComposingScene})
	return job{
		kind:           jobCompose,
		influencer:     s.InfluencerImage,
		product:        s.ProductImage,
		actionPrompt:   s.ActionPrompt,
		scenarioPrompt: scenarioPrompt,
	}, nil
}

func (w *Workflow) rejectLocked(message string) error {
	w.applyLocked(Failed{Message: message})
	w.metrics.WorkflowRejected("generate", "validation")
	w.log.Warn().Msgf("⚠️  Validation failed: %s", message)
	return apperr.Validation(message)
}

// run - 락 없이 외부 호출, 완료 후 결과 반영
// 요청이 나간 뒤에는 호출자 컨텍스트가 취소돼도 끝까지 진행
func (w *Workflow) run(ctx context.Context, j job) error {
	ctx = context.WithoutCancel(ctx)

	var (
		image  string
		err    error
		result Action
	)
	switch j.kind {
	case jobPortrait:
		w.log.Info().Msgf("🎨 Generating portrait (aspect-ratio: %s)", j.aspectRatio)
		image, err = w.gen.GeneratePortrait(ctx, j.prompt, j.aspectRatio, j.negativePrompt)
		result = PortraitProduced{Image: image}
	case jobCompose:
		w.log.Info().Msgf("🧩 Composing scene (change background: %v)", j.scenarioPrompt != "")
		image, err = w.gen.ComposeScene(ctx, j.influencer, j.product, j.actionPrompt, j.scenarioPrompt)
		result = SceneComposed{Image: image}
	}

	if err != nil {
		w.log.Error().Err(err).Msg("❌ Generation failed")
		w.update(Failed{Message: apperr.UserMessage(err)})
		return err
	}

	w.log.Info().Msg("✅ Generation completed")
	w.update(result)
	return nil
}

// mutate - 단순 상태 변경 (guardBusy 면 진행 중에는 거절)
func (w *Workflow) mutate(name string, guardBusy bool, action Action) error {
	w.mu.Lock()
	if guardBusy && w.session.IsBusy {
		w.mu.Unlock()
		w.metrics.WorkflowRejected(name, "busy")
		return ErrBusy
	}
	w.applyLocked(action)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.notify(snap)
	return nil
}

func (w *Workflow) update(action Action) {
	w.mu.Lock()
	w.applyLocked(action)
	snap := w.snapshotLocked()
	w.mu.Unlock()
	w.notify(snap)
}

func (w *Workflow) applyLocked(action Action) {
	w.session = Apply(w.session, action)
	w.version++
	w.updatedAt = w.now()
	w.log.Debug().Msgf("🔁 %s → %s", action.actionName(), w.session.State())
}

func (w *Workflow) snapshotLocked() Snapshot {
	return Snapshot{
		ID:        w.id,
		Version:   w.version,
		State:     w.session.State(),
		Session:   w.session,
		CreatedAt: w.createdAt,
		UpdatedAt: w.updatedAt,
	}
}

func (w *Workflow) notify(snap Snapshot) {
	if w.onChange != nil {
		w.onChange(snap)
	}
}
