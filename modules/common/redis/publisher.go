package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher - 세션 스냅샷을 Redis 채널로 fan-out
type Publisher struct {
	client *redis.Client
	prefix string
}

func NewPublisher(client *redis.Client, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

// Channel - 세션별 채널 이름 (<prefix>:<sessionID>)
func (p *Publisher) Channel(sessionID string) string {
	return p.prefix + ":" + sessionID
}

// Publish - 구독자 수와 무관하게 PUBLISH 한 번
func (p *Publisher) Publish(ctx context.Context, sessionID string, payload []byte) error {
	if err := p.client.Publish(ctx, p.Channel(sessionID), payload).Err(); err != nil {
		return fmt.Errorf("publish snapshot for session %s: %w", sessionID, err)
	}
	return nil
}
