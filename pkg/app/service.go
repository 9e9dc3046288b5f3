package app

import (
	"context"
	"log/slog"
)

type Service interface {
	Run(ctx context.Context) error
}

func actor(ctx context.Context, log *slog.Logger, service Service) (func() error, func(err error)) {
	ctx, cancel := context.WithCancelCause(ctx)

	return func() error {
			err := service.Run(ctx)
			log.Info("service stopped", slog.Any("err", err))
			return err
		}, func(err error) {
			cancel(err)
		}
}
