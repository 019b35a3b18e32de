// Package app wires config into the stores, caches and services shared by
// the server and the maintenance CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"threadline/internal/broker"
	"threadline/internal/config"
	"threadline/internal/db"
	"threadline/internal/logger"
	"threadline/internal/redisdb"
	"threadline/internal/services"

	"go.uber.org/zap"
)

type App struct {
	Config   *config.Config
	Store    *db.Store
	Index    *services.IndexQueue
	Comments *services.CommentService

	closers []func() error
}

// New connects to Postgres and, when configured, Redis and RabbitMQ.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	conn, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Store: db.NewStore(conn)}
	if sqlDB, err := conn.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	var publisher services.IndexPublisher = broker.LogPublisher{}
	if cfg.AMQPURL != "" {
		p, err := broker.Dial(cfg.AMQPURL, cfg.IndexExchange, cfg.IndexRoutingKey)
		if err != nil {
			a.abort(ctx)
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		publisher = p
		logger.Info("Index events go to RabbitMQ", zap.String("exchange", cfg.IndexExchange))
	}
	a.Index = services.NewIndexQueue(publisher, cfg.IndexQueueSize)

	var mentions services.MentionCache
	if cfg.RedisURL != "" {
		rc, err := redisdb.Connect(ctx, cfg.RedisURL, cfg.MentionCacheTTL)
		if err != nil {
			a.abort(ctx)
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		mentions = rc
		logger.Info("Mention cache backed by Redis")
	} else {
		lc, err := services.NewMentionCache(cfg.MentionCacheSize, cfg.MentionCacheTTL)
		if err != nil {
			a.abort(ctx)
			return nil, fmt.Errorf("mention cache: %w", err)
		}
		mentions = lc
	}

	a.Comments = services.NewCommentService(services.Deps{
		Comments:      a.Store,
		Notifications: a.Store,
		Users:         a.Store,
		Commentables:  a.Store,
		Index:         a.Index,
	}, services.Options{
		AppDomain:      cfg.AppDomain,
		TreeMaxDepth:   cfg.TreeMaxDepth,
		CascadeWorkers: cfg.CascadeWorkers,
		MentionCache:   mentions,
	})
	return a, nil
}

// abort releases what New opened before it failed.
func (a *App) abort(ctx context.Context) {
	if err := a.Close(ctx); err != nil {
		logger.Error("Failed to release partially started app", zap.Error(err))
	}
}

// Close drains the index queue, then releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Index != nil {
		drain, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.Index.Close(drain); err != nil {
			errs = append(errs, fmt.Errorf("drain index queue: %w", err))
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
