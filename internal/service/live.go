package service

import (
	"context"

	"github.com/go-demo/watchroom/internal/realtime"
	"go.uber.org/zap"
)

// watch streams the result of fetch: once immediately, then again after
// every change notification on topic. The returned channel holds only the
// latest value, so a slow reader skips intermediate states. A failed
// refetch is logged and the previous value stands.
func watch[T any](ctx context.Context, feed realtime.Feed, logger *zap.Logger, topic string, fetch func(context.Context) (T, error)) (<-chan T, error) {
	ctx, cancel := context.WithCancel(ctx)

	changes, err := feed.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return nil, classifyStoreError(ctx, err)
	}

	initial, err := fetch(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan T, 1)
	out <- initial

	go func() {
		defer cancel()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				next, err := fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Warn("Live refetch failed, keeping last state",
						zap.String("topic", topic),
						zap.Error(err),
					)
					continue
				}
				replaceLatest(out, next)
			}
		}
	}()

	return out, nil
}

// replaceLatest swaps the buffered value for v. The caller must be the only sender.
func replaceLatest[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
