package nakama

import (
	"context"
	"database/sql"
	"time"

	"kibako/internal/app"
	"kibako/internal/config"
	"kibako/internal/ports"
	"kibako/internal/ports/postgres"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/jmoiron/sqlx"
)

// InitModule wires RPCs and match handlers for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	configPath := defaultConfigPath
	if v := env[EnvConfigPath]; v != "" {
		configPath = v
	}
	if err := config.Load(configPath); err != nil {
		logger.Warn("InitModule: Could not load config %s, using defaults: %v", configPath, err)
	}
	cfg := config.Get()
	if v := env[EnvStorageBackend]; v != "" {
		cfg.Storage.Backend = v
	}

	tickets := app.NewTicketService(env[EnvTicketSecret], time.Duration(cfg.Ticket.TTLSeconds)*time.Second)
	if !tickets.Enabled() {
		logger.Warn("InitModule: %s not set, room joins are not ticket-gated", EnvTicketSecret)
	}

	deps := matchDeps{
		cfg:     cfg,
		store:   newBoardStore(cfg.Storage, db, nk, logger),
		tickets: tickets,
	}

	if err := initializer.RegisterRpc(RpcJoinPrototype, rpcJoinPrototype(tickets)); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameKibako, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(deps), nil
	}); err != nil {
		return err
	}

	logger.Info("KIBAKO Go module loaded (storage=%s).", cfg.Storage.Backend)
	return nil
}

func newBoardStore(cfg config.StorageConfig, db *sql.DB, nk runtime.NakamaModule, logger runtime.Logger) ports.BoardStore {
	switch cfg.Backend {
	case config.StorageBackendPostgres:
		return postgres.NewBoardStore(sqlx.NewDb(db, "postgres"))
	case config.StorageBackendNakama:
		return NewNakamaBoardStore(nk, cfg.Collection)
	default:
		logger.Warn("InitModule: unknown storage backend %q, falling back to %s", cfg.Backend, config.StorageBackendNakama)
		return NewNakamaBoardStore(nk, cfg.Collection)
	}
}
