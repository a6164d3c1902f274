package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/config"
	"github.com/GoSim-25-26J-441/project-collab/internal/realtime"
)

const memoryBacklog = 256

// OpenBroker connects the configured change feed backend. The returned close
// function releases the underlying connection.
func OpenBroker(ctx context.Context, cfg config.NotifyConfig, logger *zap.Logger) (realtime.Broker, func(), error) {
	switch cfg.Backend {
	case config.NotifyMemory:
		logger.Warn("using in-process change feed; events do not reach other replicas")
		return realtime.NewMemoryBroker(logger, memoryBacklog), func() {}, nil

	case config.NotifyRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("redis change feed connected", zap.String("addr", cfg.RedisAddr))
		return realtime.NewRedisBroker(client, logger), func() { _ = client.Close() }, nil

	case config.NotifyNATS:
		conn, err := nats.Connect(cfg.NATSURL,
			nats.Name("project-collab"),
			nats.Timeout(connectTimeout),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
			}),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("nats connect: %w", err)
		}
		logger.Info("nats change feed connected", zap.String("url", conn.ConnectedUrl()))
		return realtime.NewNATSBroker(conn, logger), func() { _ = conn.Drain() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown NOTIFY_BACKEND %q", cfg.Backend)
	}
}
