package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/forkme7/BoxOptionsServer/pkg/ebus"
)

type watch struct {
	frame  time.Duration
	getter func(ctx context.Context) (any, error)
}

// Watcher periodically samples state and emits it on the bus.
type Watcher struct {
	eBus *ebus.EBus
	subs []watch
	mx   sync.Mutex
}

func (w *Watcher) EmitEvery(frame time.Duration, getter func(ctx context.Context) (any, error)) *Watcher {
	w.mx.Lock()
	defer w.mx.Unlock()

	w.subs = append(w.subs, watch{frame: frame, getter: getter})
	return w
}

func NewWatcher(eBus *ebus.EBus) *Watcher {
	return &Watcher{
		eBus: eBus,
	}
}

func (w *Watcher) Run(ctx context.Context) error {
	w.mx.Lock()
	subs := append([]watch(nil), w.subs...)
	w.mx.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error)

	for _, sub := range subs {
		go func(sub watch) {
			ticker := time.NewTicker(sub.frame)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					ins, err := sub.getter(ctx)
					if err != nil {
						select {
						case errs <- err:
						case <-ctx.Done():
						}
						return
					}
					_ = w.eBus.Emit(ctx, ins)
				}
			}
		}(sub)
	}

	select {
	case err := <-errs:
		return fmt.Errorf("watcher: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogAny writes any bus event to the default logger.
func LogAny[T any](ctx context.Context, event T) error {
	js, err := json.Marshal(event)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, reflect.TypeOf(event).Name(), slog.Any("event", json.RawMessage(js)))

	return nil
}
