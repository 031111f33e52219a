package repository

import (
	"context"
	"time"

	"github.com/landscape-rescale/internal/domain"
)

// StreamRepository - интерфейс для работы с Redis Streams
type StreamRepository interface {
	// CreateConsumerGroup создаёт consumer group (вместе со стримом, если его нет)
	CreateConsumerGroup(ctx context.Context, stream, group string) error

	// ConsumeBatch читает до count новых сообщений, блокируясь не дольше block
	ConsumeBatch(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]domain.StreamMessage, error)

	// ClaimPending забирает на consumer сообщения, висящие в PEL группы дольше minIdle
	ClaimPending(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]domain.StreamMessage, error)

	// AckMessages подтверждает обработку сообщений
	AckMessages(ctx context.Context, stream, group string, messageIDs ...string) error

	// PublishToStream публикует сообщение в стрим (JSON в поле "data")
	PublishToStream(ctx context.Context, stream string, data interface{}) error
}
