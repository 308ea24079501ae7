package tenantctl

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/tenantguard/pkg/audit"
	"github.com/dmitrymomot/tenantguard/pkg/config"
	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/mongo"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
)

const (
	backendPostgres = "postgres"
	backendMongo    = "mongo"
)

// Config holds the settings every command reads. Database settings are
// loaded only by the commands that connect.
type Config struct {
	AuditBackend    string `env:"TENANTGUARD_AUDIT_BACKEND" envDefault:"postgres"`
	AuditCollection string `env:"TENANTGUARD_AUDIT_COLLECTION" envDefault:"audit_records"`
	Log             logger.Config
}

func (a *app) loadOptions() []config.Option {
	if len(a.envFiles) == 0 {
		return nil
	}
	return []config.Option{config.WithEnvFiles(a.envFiles...)}
}

// connectPG opens a pool bound through the tenant binder, so that commands
// that touch tenant tables see exactly what the application would.
func (a *app) connectPG(ctx context.Context) (*pgxpool.Pool, pg.BinderConfig, pg.Config, error) {
	var cfg pg.Config
	if err := config.Load(&cfg, a.loadOptions()...); err != nil {
		return nil, pg.BinderConfig{}, cfg, err
	}
	binderCfg := pg.DefaultBinderConfig()
	if err := config.Load(&binderCfg, a.loadOptions()...); err != nil {
		return nil, binderCfg, cfg, err
	}

	pool, err := pg.Connect(ctx, cfg, pg.NewBinder(binderCfg, a.log))
	if err != nil {
		return nil, binderCfg, cfg, err
	}
	return pool, binderCfg, cfg, nil
}

func (a *app) connectAudit(ctx context.Context, backend string) (audit.Storage, func(), error) {
	switch backend {
	case backendPostgres:
		pool, _, _, err := a.openPG(ctx)
		if err != nil {
			return nil, nil, err
		}
		return audit.NewPGStorage(pool), pool.Close, nil

	case backendMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg, a.loadOptions()...); err != nil {
			return nil, nil, err
		}
		db, err := mongo.ConnectDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := db.Client().Disconnect(context.WithoutCancel(ctx)); err != nil {
				a.log.WarnContext(ctx, "tenantctl: mongo disconnect", logger.Error(err))
			}
		}
		return audit.NewMongoStorage(db, a.cfg.AuditCollection), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown audit backend %q", backend)
	}
}
