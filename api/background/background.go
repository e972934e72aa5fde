package background

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Background runs fire-and-forget tasks, typically outbound emails, so
// that a slow or failing notification never blocks or rolls back the
// request that triggered it. Task errors are logged and swallowed.
type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

func (b *Background) Add(task func() error) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		defer func() {
			if rec := recover(); rec != nil {
				b.log.Errorf("PANIC in background task: %v", rec)
			}
		}()

		if err := task(); err != nil {
			b.log.Errorf("background task failed: %v", err)
		}
	}()
}

// Shutdown waits for in-flight tasks to drain or the context to expire.
func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown with pending background tasks: %w", ctx.Err())
	}
}
