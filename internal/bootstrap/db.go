package bootstrap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/config"
	"github.com/GoSim-25-26J-441/project-collab/internal/db"
)

const connectTimeout = 5 * time.Second

// OpenDB connects to Postgres and applies the embedded migrations when
// DB_MIGRATE is enabled.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*db.DB, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := db.Open(cctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected",
		zap.Int("max_conns", cfg.MaxConns),
		zap.Int("min_conns", cfg.MinConns),
	)

	if cfg.Migrate {
		if err := conn.Migrate(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		logger.Info("database migrations applied")
	}
	return conn, nil
}
