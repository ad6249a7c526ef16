// Command bazaar-api serves the shop map and vendor price API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	bazaar "github.com/bazaarscan/bazaarscan/internal/app"
)

func main() {
	app.Run(serve)
}

// serve loads the configuration and runs the API until ctx is done.
func serve(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
	cfg, err := bazaar.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "config")
	}

	lg.Info("Configuration loaded",
		zap.String("storage", cfg.Storage.Driver),
		zap.Float64("default_radius_km", cfg.Search.DefaultRadiusKm),
		zap.Float64("max_radius_km", cfg.Search.MaxRadiusKm),
		zap.Bool("mqtt", cfg.MQTT.BrokerURL != ""),
		zap.Strings("cors_origins", cfg.CORS.Origins),
	)
	return bazaar.Run(ctx, lg, m, cfg)
}
