package migrate

import (
	"context"
	"fmt"

	"github.com/benchlot/benchlot-backend/pkg/config"
	"github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to date on boot when
// BENCHLOT_AUTO_MIGRATE is set. Shared environments migrate through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !autoMigrateEnabled(cfg.App) {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Migrations(), logg)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "auto-migrating dev database")
	if err := runner.Up(ctx); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func autoMigrateEnabled(app config.AppConfig) bool {
	return app.AutoMigrate && app.IsDev() && !app.IsProd()
}
