package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/go-redis/redis/v8"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/model"
)

// Service relays persisted messages to the delivery tier by publishing
// them on a per-receiver redis channel. Delivery itself (websockets or
// otherwise) lives outside this process; a relay with no redis client
// is a no-op, messages are then only available through the REST history.
type Service struct {
	rdb *redis.Client
}

func (s *Service) LoggerComponent() string {
	return "Chat.Service"
}

func New(rdb *redis.Client) (*Service, error) {
	s := &Service{
		rdb: rdb,
	}
	return s, nil
}

func channelFor(m *model.Message) string {
	return "chat." + m.ReceiverID.String()
}

// Publish the message for the receiver's channel.
func (s *Service) Publish(ctx context.Context, m *model.Message) error {
	l := logger.Get(ctx, s)

	if s.rdb == nil {
		l.Debug().Msg("Relay disabled, message not published")
		return nil
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	if err := s.rdb.Publish(ctx, channelFor(m), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	l.Debug().Str("channel", channelFor(m)).Msg("Message published")

	return nil
}
