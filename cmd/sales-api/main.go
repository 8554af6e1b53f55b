package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/salesdesk/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadSalesAPIConfig()
		if err != nil {
			return err
		}
		return appkg.RunSalesAPI(ctx, lg, m, cfg)
	})
}
