package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot, but only in dev with
// ANGKOR_DB_RUN_MIGRATIONS_DEV set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.DB.RunMigrationsDev {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql db: %w", err)
	}
	m, err := New(sqlDB, Embedded(), logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "applying migrations (dev auto-run)")
	return m.Up(ctx)
}
