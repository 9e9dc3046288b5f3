package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/run"
)

type App struct {
	services []Service
	runner   *run.Group
	log      *slog.Logger
}

func NewApp(log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		services: make([]Service, 0),
		runner:   &run.Group{},
		log:      log,
	}
}

func (a *App) WithService(s Service) *App {
	a.services = append(a.services, s)
	return a
}

// Run blocks until the first service returns, then stops the rest.
func (a *App) Run(ctx context.Context) error {
	for _, service := range a.services {
		a.runner.Add(actor(ctx, a.log.With(slog.String("service", fmt.Sprintf("%T", service))), service))
	}

	return a.runner.Run()
}
