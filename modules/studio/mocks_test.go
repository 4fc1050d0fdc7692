package studio

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/rs/zerolog"

	"influencia-studio-server/modules/common/metrics"
)

// --- Mocks ---

type portraitCall struct {
	prompt         string
	aspectRatio    string
	negativePrompt string
}

type composeCall struct {
	influencer     string
	product        string
	actionPrompt   string
	scenarioPrompt string
}

// fakeGenerator - Generator 테스트 구현
type fakeGenerator struct {
	mu sync.Mutex

	generatePortraitFunc func(ctx context.Context, prompt, aspectRatio, negativePrompt string) (string, error)
	composeSceneFunc     func(ctx context.Context, influencer, product, actionPrompt, scenarioPrompt string) (string, error)
	translateTextFunc    func(ctx context.Context, text string) (string, error)

	portraitCalls  []portraitCall
	composeCalls   []composeCall
	translateCalls []string
}

func (f *fakeGenerator) GeneratePortrait(ctx context.Context, prompt, aspectRatio, negativePrompt string) (string, error) {
	f.mu.Lock()
	f.portraitCalls = append(f.portraitCalls, portraitCall{prompt: prompt, aspectRatio: aspectRatio, negativePrompt: negativePrompt})
	f.mu.Unlock()
	if f.generatePortraitFunc == nil {
		return portraitHandle, nil
	}
	return f.generatePortraitFunc(ctx, prompt, aspectRatio, negativePrompt)
}

func (f *fakeGenerator) ComposeScene(ctx context.Context, influencer, product, actionPrompt, scenarioPrompt string) (string, error) {
	f.mu.Lock()
	f.composeCalls = append(f.composeCalls, composeCall{influencer: influencer, product: product, actionPrompt: actionPrompt, scenarioPrompt: scenarioPrompt})
	f.mu.Unlock()
	if f.composeSceneFunc == nil {
		return sceneHandle, nil
	}
	return f.composeSceneFunc(ctx, influencer, product, actionPrompt, scenarioPrompt)
}

func (f *fakeGenerator) TranslateText(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.translateCalls = append(f.translateCalls, text)
	f.mu.Unlock()
	if f.translateTextFunc == nil {
		return "en: " + text, nil
	}
	return f.translateTextFunc(ctx, text)
}

func (f *fakeGenerator) portraitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.portraitCalls)
}

func (f *fakeGenerator) composeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.composeCalls)
}

// snapshotRecorder - onChange 로 전달된 스냅샷 기록
type snapshotRecorder struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (r *snapshotRecorder) record(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snap)
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *snapshotRecorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[len(r.snapshots)-1]
}

// fakePublisher - Publisher 테스트 구현
type fakePublisher struct {
	mu       sync.Mutex
	err      error
	payloads map[string][][]byte
}

func (p *fakePublisher) Publish(ctx context.Context, sessionID string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payloads == nil {
		p.payloads = make(map[string][][]byte)
	}
	p.payloads[sessionID] = append(p.payloads[sessionID], payload)
	return p.err
}

func (p *fakePublisher) count(sessionID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads[sessionID])
}

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

	portraitHandle = "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	uploadHandle   = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRupload"))
	productHandle  = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes)
	sceneHandle    = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRscene"))
)

func newTestWorkflow(gen Generator) (*Workflow, *snapshotRecorder) {
	rec := &snapshotRecorder{}
	return NewWorkflow("test-session", gen, zerolog.Nop(), metrics.New(), rec.record), rec
}

// blockingPortrait - release 가 닫힐 때까지 생성 호출을 붙잡아 둠
func blockingPortrait(started chan<- struct{}, release <-chan struct{}) func(ctx context.Context, prompt, aspectRatio, negativePrompt string) (string, error) {
	return func(ctx context.Context, prompt, aspectRatio, negativePrompt string) (string, error) {
		started <- struct{}{}
		<-release
		return portraitHandle, nil
	}
}

func ptr[T any](v T) *T {
	return &v
}
