package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"langmod/server/backend/dispatch"
	"langmod/server/backend/moderation"
	"langmod/server/backend/service"
	"langmod/server/common/infra/db"
	"langmod/server/common/infra/mq"
	"langmod/server/store"
)

// Server wires the backend: one consumer per queue (each with its own
// prefetch=1 channel), a shared publisher, and a small HTTP surface
// for health checks.
type Server struct {
	HTTPServer *http.Server

	cfg        Config
	pool       *pgxpool.Pool
	publisher  *mq.Client
	general    *mq.Client
	result     *mq.Client
	dispatcher *dispatch.Dispatcher
}

func NewServer(cfg Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres: %w", err)
	}
	st := store.NewPostgres(pool)
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	publisher, err := mq.Dial(cfg.AMQPURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize amqp publisher: %w", err)
	}
	if err := publisher.Declare(cfg.GeneralQueue, cfg.WorkerQueue, cfg.ResultQueue, cfg.NotificationQueue); err != nil {
		publisher.Close()
		pool.Close()
		return nil, fmt.Errorf("declare queues: %w", err)
	}

	general, err := mq.Dial(cfg.AMQPURL)
	if err != nil {
		publisher.Close()
		pool.Close()
		return nil, fmt.Errorf("initialize general consumer: %w", err)
	}
	result, err := mq.Dial(cfg.AMQPURL)
	if err != nil {
		general.Close()
		publisher.Close()
		pool.Close()
		return nil, fmt.Errorf("initialize result consumer: %w", err)
	}

	analyzeSvc := service.NewAnalyzeService(publisher, cfg.WorkerQueue)
	statsSvc := service.NewStatsService(st, publisher, cfg.NotificationQueue)
	engine := moderation.NewEngine(st)
	resultSvc := service.NewResultService(st, engine, publisher, cfg.NotificationQueue)
	dispatcher := dispatch.New(analyzeSvc, statsSvc, resultSvc)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		HTTPServer: httpServer,
		cfg:        cfg,
		pool:       pool,
		publisher:  publisher,
		general:    general,
		result:     result,
		dispatcher: dispatcher,
	}, nil
}

// StartConsumers runs both queue consumers until ctx is done. The
// returned channel reports consumer exits.
func (s *Server) StartConsumers(ctx context.Context) <-chan error {
	errs := make(chan error, 2)
	go func() {
		errs <- s.general.Consume(ctx, s.cfg.GeneralQueue, "backend-general", s.dispatcher.HandleGeneral)
	}()
	go func() {
		errs <- s.result.Consume(ctx, s.cfg.ResultQueue, "backend-result", s.dispatcher.HandleResult)
	}()
	return errs
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.result.Close()
	s.general.Close()
	s.publisher.Close()
	s.pool.Close()
	return s.HTTPServer.Shutdown(ctx)
}
