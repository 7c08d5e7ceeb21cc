package auth

import (
	"context"
	"log/slog"
	"time"
)

const DefaultTokenCleanupInterval = time.Hour

// StartTokenCleaner sweeps expired rows out of user_tokens in the background
// until ctx is cancelled. ValidateToken purges only tokens that are presented
// again; the sweeper catches the rest.
func (s *Service) StartTokenCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTokenCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cleanupExpiredTokens(ctx); err != nil {
				slog.Warn("cleanup expired tokens", "error", err)
			}
		}
	}
}

func (s *Service) cleanupExpiredTokens(ctx context.Context) error {
	now := time.Now().UTC()

	var keys []string
	if s.cache != nil {
		rows, err := s.db.QueryContext(ctx, `SELECT token FROM user_tokens WHERE expires_at <= ?`, now)
		if err != nil {
			return err
		}
		for rows.Next() {
			var token string
			if err := rows.Scan(&token); err != nil {
				rows.Close()
				return err
			}
			keys = append(keys, redisTokenPrefix+token)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE expires_at <= ?`, now); err != nil {
		return err
	}
	if s.cache != nil && len(keys) > 0 {
		if err := s.cache.Del(ctx, keys...); err != nil {
			slog.Warn("purge cached tokens", "error", err)
		}
	}
	return nil
}
