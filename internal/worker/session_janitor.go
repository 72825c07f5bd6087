package worker

import (
	"context"
	"sync"
	"time"

	"gopherblog/internal/logging"
)

type ExpiredSessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionJanitor periodically removes expired rows from the SQL session
// store. Redis expires its keys on its own and needs no janitor.
type SessionJanitor struct {
	store    ExpiredSessionPurger
	interval time.Duration
	logger   logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSessionJanitor(store ExpiredSessionPurger, interval time.Duration, logger logging.Logger) *SessionJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionJanitor{
		store:    store,
		interval: interval,
		logger:   logger.With("worker", "session_janitor"),
	}
}

func (j *SessionJanitor) Start(ctx context.Context) {
	if j.cancel != nil {
		return
	}
	janitorCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			j.sweep(janitorCtx)
			select {
			case <-janitorCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (j *SessionJanitor) sweep(ctx context.Context) {
	n, err := j.store.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Warn(ctx, "purge expired sessions failed", "error", err)
		}
		return
	}
	if n > 0 {
		j.logger.Debug(ctx, "purged expired sessions", "count", n)
	}
}

func (j *SessionJanitor) Close() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}
