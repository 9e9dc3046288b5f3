package ebus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// EBus dispatches events synchronously to listeners keyed by the event type name.
type EBus struct {
	listeners map[string][]Listener
	mx        sync.RWMutex
}

func New() *EBus {
	return &EBus{
		listeners: make(map[string][]Listener),
	}
}

func (e *EBus) Subscribe(event any, handler Listener) *EBus {
	e.mx.Lock()
	defer e.mx.Unlock()

	name := nameOf(event)
	e.listeners[name] = append(e.listeners[name], handler)

	return e
}

// Emit calls every listener of the event type, even if some of them fail.
func (e *EBus) Emit(ctx context.Context, event any) error {
	e.mx.RLock()
	handlers := e.listeners[nameOf(event)]
	e.mx.RUnlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no one listener registered: type %T", event)
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func nameOf(event any) string {
	return reflect.TypeOf(event).Name()
}
