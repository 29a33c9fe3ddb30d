package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	commonauth "langmod/server/common/auth"
	"langmod/server/common/infra/cache"
	"langmod/server/common/infra/db"
	"langmod/server/common/infra/mq"
	"langmod/server/ingest/api"
	"langmod/server/ingest/service"
	"langmod/server/store"
)

// Server wires the bot-facing boundary: HTTP intake, the admission
// policy, the general-queue publisher, and the Redis job-status store.
type Server struct {
	HTTPServer *http.Server

	pool      *pgxpool.Pool
	redis     *redis.Client
	publisher *mq.Client
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

	redisClient := cache.NewClient(cfg.RedisAddr)
	if err := cache.Ping(ctx, redisClient); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	publisher, err := mq.Dial(cfg.AMQPURL)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("initialize amqp publisher: %w", err)
	}
	if err := publisher.Declare(cfg.GeneralQueue); err != nil {
		publisher.Close()
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	jobs := cache.NewJobStore(redisClient, cfg.JobTTL)
	svc := service.NewIngestService(st, service.NewAdmissionPolicy(), publisher, jobs, cfg.GeneralQueue)
	authSvc := commonauth.NewService(cfg.JWTSecret, cfg.JWTTTLMinutes)
	handler := api.NewHandler(svc, authSvc, cfg.BotAPIKey)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	handler.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		HTTPServer: httpServer,
		pool:       pool,
		redis:      redisClient,
		publisher:  publisher,
	}, nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.publisher.Close()
	_ = s.redis.Close()
	s.pool.Close()
	return s.HTTPServer.Shutdown(ctx)
}
