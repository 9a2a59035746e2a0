package session

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Backplane shares room broadcasts between process instances. The registry
// works without one; a deployment that scales horizontally plugs one in.
type Backplane interface {
	Publish(code string, payload []byte) error
	Subscribe(handler func(code string, payload []byte))
	Close() error
}

const (
	channelPrefix = "room:"
	channelSuffix = ":events"
)

// RedisBackplane fans room broadcasts through Redis pub/sub, one channel
// per access code.
type RedisBackplane struct {
	client *redis.Client
}

func NewRedisBackplane(client *redis.Client) *RedisBackplane {
	return &RedisBackplane{client: client}
}

func (b *RedisBackplane) Publish(code string, payload []byte) error {
	return b.client.Publish(context.Background(), roomChannel(code), payload).Err()
}

// Subscribe starts a goroutine that forwards every room channel message to
// handler. It runs until the client is closed.
func (b *RedisBackplane) Subscribe(handler func(code string, payload []byte)) {
	pubsub := b.client.PSubscribe(context.Background(), channelPrefix+"*"+channelSuffix)
	go func() {
		defer pubsub.Close()
		for msg := range pubsub.Channel() {
			code := codeFromChannel(msg.Channel)
			if code == "" {
				logrus.WithField("channel", msg.Channel).Warn("Backplane message on unexpected channel.")
				continue
			}
			handler(code, []byte(msg.Payload))
		}
	}()
}

func (b *RedisBackplane) Close() error {
	return b.client.Close()
}

func roomChannel(code string) string {
	return channelPrefix + code + channelSuffix
}

func codeFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
