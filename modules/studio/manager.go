package studio

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"influencia-studio-server/modules/common/logger"
	"influencia-studio-server/modules/common/metrics"
)

const (
	emptyCleanupInterval   = 5 * time.Minute
	expiredCleanupInterval = 30 * time.Minute
	publishTimeout         = 3 * time.Second
)

// ErrSessionNotFound - 없는 세션 id
var ErrSessionNotFound = errors.New("studio: session not found")

// Publisher - 세션 스냅샷 외부 전파 (redis.Publisher)
type Publisher interface {
	Publish(ctx context.Context, sessionID string, payload []byte) error
}

type ManagerOptions struct {
	InactiveTTL time.Duration
	MaxAge      time.Duration
	Publisher   Publisher
}

type sessionEntry struct {
	workflow  *Workflow
	hub       *Hub
	createdAt time.Time
}

// Manager - 세션 생성/조회/정리
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	gen       Generator
	opts      ManagerOptions
	log       zerolog.Logger
	metrics   *metrics.Metrics
	startTime time.Time
	created   int
	now       func() time.Time
}

func NewManager(gen Generator, opts ManagerOptions, l zerolog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		sessions:  make(map[string]*sessionEntry),
		gen:       gen,
		opts:      opts,
		log:       logger.Component(l, "studio"),
		metrics:   m,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Create - 기본값으로 새 세션 생성
func (m *Manager) Create() *Workflow {
	id := uuid.NewString()
	entry := &sessionEntry{createdAt: m.now()}
	entry.workflow = NewWorkflow(id, m.gen, m.log, m.metrics, func(snap Snapshot) {
		m.publish(entry.hub, snap)
	})
	entry.workflow.now = m.now
	entry.hub = NewHub(id, entry.workflow.Snapshot, m.log, m.metrics)

	m.mu.Lock()
	m.sessions[id] = entry
	m.created++
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(active)
	m.log.Info().Msgf("🆕 Created new session: %s (Total: %d, Active: %d)", id, m.created, active)
	return entry.workflow
}

// Get - 세션 조회
func (m *Manager) Get(id string) (*Workflow, error) {
	entry, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return entry.workflow, nil
}

// Hub - 세션의 websocket 구독자 목록
func (m *Manager) Hub(id string) (*Hub, error) {
	entry, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return entry.hub, nil
}

func (m *Manager) get(id string) (*sessionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, exists := m.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

// Delete - 세션 제거 (진행 중이면 거절)
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	entry, exists := m.sessions[id]
	if !exists {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if entry.workflow.IsBusy() {
		m.mu.Unlock()
		return ErrBusy
	}
	delete(m.sessions, id)
	active := len(m.sessions)
	m.mu.Unlock()

	entry.hub.Close()
	m.metrics.SetActiveSessions(active)
	m.log.Info().Msgf("🗑️  Deleted session: %s (Active: %d)", id, active)
	return nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup - 비활성/만료 세션 즉시 정리, 정리된 수 반환
func (m *Manager) Cleanup() int {
	return m.cleanupInactive() + m.cleanupExpired()
}

// cleanupInactive - 구독자 없이 InactiveTTL 이상 방치된 세션
func (m *Manager) cleanupInactive() int {
	now := m.now()
	return m.evict("inactive", func(entry *sessionEntry) bool {
		return entry.hub.ClientCount() == 0 && now.Sub(entry.workflow.LastActivity()) > m.opts.InactiveTTL
	})
}

// cleanupExpired - 생성 후 MaxAge 가 지난 세션
func (m *Manager) cleanupExpired() int {
	now := m.now()
	return m.evict("expired", func(entry *sessionEntry) bool {
		return now.Sub(entry.createdAt) > m.opts.MaxAge
	})
}

// evict - 진행 중인 세션은 조건과 무관하게 유지
func (m *Manager) evict(reason string, shouldEvict func(*sessionEntry) bool) int {
	m.mu.Lock()
	evicted := make([]*sessionEntry, 0)
	for id, entry := range m.sessions {
		if entry.workflow.IsBusy() || !shouldEvict(entry) {
			continue
		}
		delete(m.sessions, id)
		evicted = append(evicted, entry)
		m.log.Info().Msgf("⏰ Cleaned up %s session: %s (Age: %v)", reason, id, m.now().Sub(entry.createdAt))
	}
	active := len(m.sessions)
	m.mu.Unlock()

	for _, entry := range evicted {
		entry.hub.Close()
	}
	if len(evicted) > 0 {
		m.metrics.SetActiveSessions(active)
		m.log.Info().Msgf("🧼 Cleaned up %d %s sessions (Active: %d)", len(evicted), reason, active)
	}
	return len(evicted)
}

// StartCleanupRoutine - 5분마다 비활성, 30분마다 만료 세션 정리 (ctx 취소 시 종료)
func (m *Manager) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(emptyCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cleanupInactive()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(expiredCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cleanupExpired()
			}
		}
	}()

	m.log.Info().Msgf("🔄 Started session cleanup routines (Inactive: %v, Expired: %v)", emptyCleanupInterval, expiredCleanupInterval)
}

// SessionStats - /stats 응답의 세션 항목
type SessionStats struct {
	SessionID    string    `json:"sessionId"`
	State        State     `json:"state"`
	ClientCount  int       `json:"clientCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	Age          string    `json:"age"`
	Inactive     string    `json:"inactive"`
}

// Stats - /stats 응답
type Stats struct {
	Uptime         string         `json:"uptime"`
	StartTime      time.Time      `json:"startTime"`
	TotalSessions  int            `json:"totalSessions"`
	ActiveSessions int            `json:"activeSessions"`
	CurrentClients int            `json:"currentClients"`
	Sessions       []SessionStats `json:"sessions"`
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	entries := make([]*sessionEntry, 0, len(m.sessions))
	for _, entry := range m.sessions {
		entries = append(entries, entry)
	}
	total := m.created
	m.mu.RUnlock()

	now := m.now()
	stats := Stats{
		Uptime:         time.Since(m.startTime).String(),
		StartTime:      m.startTime,
		TotalSessions:  total,
		ActiveSessions: len(entries),
		Sessions:       make([]SessionStats, 0, len(entries)),
	}
	for _, entry := range entries {
		snap := entry.workflow.Snapshot()
		clients := entry.hub.ClientCount()
		stats.CurrentClients += clients
		stats.Sessions = append(stats.Sessions, SessionStats{
			SessionID:    snap.ID,
			State:        snap.State,
			ClientCount:  clients,
			CreatedAt:    snap.CreatedAt,
			LastActivity: snap.UpdatedAt,
			Age:          now.Sub(snap.CreatedAt).String(),
			Inactive:     now.Sub(snap.UpdatedAt).String(),
		})
	}
	return stats
}

// publish - 로컬 구독자 broadcast 후 Redis 전파, 실패는 로그만 남김
func (m *Manager) publish(hub *Hub, snap Snapshot) {
	payload, err := json.Marshal(Message{Type: MessageSnapshot, SessionID: snap.ID, Session: &snap})
	if err != nil {
		m.log.Error().Err(err).Msg("Error marshaling snapshot")
		return
	}

	if hub != nil {
		hub.Broadcast(payload)
		m.metrics.SnapshotPublished("websocket", nil)
	}

	if m.opts.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err = m.opts.Publisher.Publish(ctx, snap.ID, payload)
	m.metrics.SnapshotPublished("redis", err)
	if err != nil {
		m.log.Warn().Err(err).Msgf("⚠️  Failed to publish snapshot v%d", snap.Version)
	}
}
