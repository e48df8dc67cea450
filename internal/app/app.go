// Package app wires configuration into a ready assistant for the server and
// the command line.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/Skufu/GoSia/internal/config"
	"github.com/Skufu/GoSia/internal/conversation"
	"github.com/Skufu/GoSia/internal/knowledge"
	"github.com/Skufu/GoSia/internal/model"
	"github.com/Skufu/GoSia/internal/responder"
)

// Assistant bundles the responder with what it was built from.
type Assistant struct {
	Knowledge *knowledge.Base
	Model     *model.Shared
	Responder *responder.Responder
}

// NewAssistant loads the knowledge tables and binds a lazily loaded model
// handle. Nothing is fetched from the model server until first use.
func NewAssistant(cfg *config.Config, logger *slog.Logger) (*Assistant, error) {
	kb, err := knowledge.Load(cfg.KnowledgeFile)
	if err != nil {
		return nil, err
	}

	client := model.NewClient(cfg.ModelServerURL, &http.Client{})
	shared := model.NewShared(client.Loader(cfg.ModelName))
	gen := responder.NewGenerator(shared, cfg.GenerationTimeout)

	return &Assistant{
		Knowledge: kb,
		Model:     shared,
		Responder: responder.New(kb, gen, logger),
	}, nil
}

// Runtime is everything the HTTP server needs.
type Runtime struct {
	Assistant *Assistant
	Store     conversation.Store
	Pool      *pgxpool.Pool
}

func (r *Runtime) Close() {
	if r.Pool != nil {
		r.Pool.Close()
	}
}

// Start builds the assistant and the conversation store. The database
// connection and the optional model warm-up run concurrently. A failed
// warm-up is logged, not fatal: the handle loads again on first use.
func Start(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	assistant, err := NewAssistant(cfg, logger)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Assistant: assistant}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.EnableDB {
		g.Go(func() error {
			pool, err := ConnectDB(gctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			rt.Pool = pool
			return nil
		})
	}
	if cfg.WarmModel {
		g.Go(func() error {
			start := time.Now()
			if _, err := assistant.Model.Get(gctx); err != nil {
				logger.Warn("model warm-up failed", "model", cfg.ModelName, "error", err)
				return nil
			}
			logger.Info("model loaded", "model", cfg.ModelName, "elapsed", time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		rt.Close()
		return nil, err
	}

	if rt.Pool == nil {
		rt.Store = conversation.NewMemoryStore()
		return rt, nil
	}

	store := conversation.NewPostgresStore(rt.Pool)
	if err := store.EnsureSchema(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	rt.Store = store
	return rt, nil
}

// ConnectDB opens a pool and pings it, retrying transient failures.
func ConnectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	b := retry.WithMaxRetries(4, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}
