package workers

import (
	"context"
	"log"
	"time"

	"quizClashClient/services"
)

// StartRefreshWorker reconciles the relationship cache with the backend on a
// fixed interval. Rollback bookkeeping in the cache already defers to
// whatever a refresh installs, so the worker can run concurrently with
// user-driven mutations.
func StartRefreshWorker(ctx context.Context, friendsService *services.FriendsService, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("Refresh worker stopped")
				return
			case <-ticker.C:
				refreshOnce(ctx, friendsService)
			}
		}
	}()
}

func refreshOnce(ctx context.Context, friendsService *services.FriendsService) {
	refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := friendsService.Refresh(refreshCtx); err != nil {
		log.Printf("Refresh worker: %v", err)
	}
}
