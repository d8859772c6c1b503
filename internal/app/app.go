package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pvzzle/ethwallet/internal/ethrpc"
	"github.com/pvzzle/ethwallet/internal/httpapi"
	"github.com/pvzzle/ethwallet/internal/ledger"
	klog "github.com/pvzzle/ethwallet/internal/log"
	"github.com/pvzzle/ethwallet/internal/storage"
	"github.com/pvzzle/ethwallet/internal/storage/badgerdb"
	"github.com/pvzzle/ethwallet/internal/storage/pg"
	"github.com/pvzzle/ethwallet/internal/tg"
	"github.com/pvzzle/ethwallet/internal/wallet"

	tgbot "github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 30 * time.Second

func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	klog.Init(cfg.LogLevel, cfg.LogFormat == "json")
	log := klog.WithComponent("app")

	repo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	ethCl, err := ethrpc.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer ethCl.Close()

	// the node may be down at boot; history and record routes work without it
	idCtx, idCancel := context.WithTimeout(ctx, cfg.RPCTimeout)
	chainID, err := ethrpc.ChainIDString(idCtx, ethCl)
	idCancel()
	if err != nil {
		log.Warn().Err(err).Str("rpc_url", httpapi.SanitizeMessage(cfg.RPCURL)).Msg("node not answering, continuing")
	}

	ledgerCfg := ledger.Config{RPCTimeout: cfg.RPCTimeout}

	var notifier *tg.Notifier
	if cfg.TelegramToken != "" {
		notifier = tg.NewNotifier(cfg.TelegramChatID, cfg.NotifyBuffer)
		ledgerCfg.Publisher = notifier
	}

	svc := ledger.NewService(repo, ethrpc.NewNode(ethCl), ledgerCfg)
	wallets := wallet.NewService(wallet.NewKeystore(), svc)

	if notifier != nil {
		b, err := tgbot.New(cfg.TelegramToken,
			tgbot.WithWorkers(4),
			tgbot.WithNotAsyncHandlers(),
		)
		if err != nil {
			return fmt.Errorf("telegram bot init: %w", err)
		}
		tgSvc := tg.NewService(b, svc, notifier.C())

		go tgSvc.StartNotifyLoop(ctx)
		go b.Start(ctx)
		log.Info().Int64("chat_id", cfg.TelegramChatID).Msg("telegram notifier enabled")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.NewRouter(httpapi.NewHandler(svc, wallets, cfg.StoreBackend), cfg.StaticDir),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RPCTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("chain_id", chainID).
			Str("store", cfg.StoreBackend).
			Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg Config) (storage.Repository, error) {
	switch cfg.StoreBackend {
	case StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool new: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		return pg.New(pool), nil
	case StoreBadger:
		db, err := badgerdb.Open(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return storage.NewMemory(), nil
	}
}
