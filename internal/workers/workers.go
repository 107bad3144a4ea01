package workers

import (
	"context"
	"time"

	"learningTrackerAPI/internal/logger"
)

// SessionCleaner deletes expired sessions and reports how many went.
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// StartCleanupWorker runs a cleanup every interval until ctx is cancelled.
// The returned channel closes once the worker has stopped.
func StartCleanupWorker(ctx context.Context, cleaner SessionCleaner, interval time.Duration, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cleanupExpiredSessions(ctx, cleaner, log)
			}
		}
	}()

	return done
}

func cleanupExpiredSessions(ctx context.Context, cleaner SessionCleaner, log logger.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	n, err := cleaner.CleanupExpiredSessions(ctx)
	if err != nil {
		log.Errorw("Error cleaning up expired sessions", "err", err)
		return
	}
	if n > 0 {
		log.Infow("Cleaned up expired sessions", "count", n)
	}
}
