package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"langmod/server/common/infra/cache"
	"langmod/server/common/infra/mq"
	"langmod/server/worker/service"
)

type Server struct {
	HTTPServer *http.Server

	cfg      Config
	redis    *redis.Client
	client   *mq.Client
	analyzer *service.Analyzer
}

func NewServer(cfg Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	redisClient := cache.NewClient(cfg.RedisAddr)
	if err := cache.Ping(ctx, redisClient); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	client, err := mq.Dial(cfg.AMQPURL)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("initialize amqp: %w", err)
	}
	if err := client.Declare(cfg.WorkerQueue, cfg.ResultQueue); err != nil {
		client.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("declare queues: %w", err)
	}

	jobs := cache.NewJobStore(redisClient, cfg.JobTTL)
	detector := service.NewLinguaDetector()
	analyzer := service.NewAnalyzer(detector, client, jobs, cfg.ResultQueue)

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
		redis:      redisClient,
		client:     client,
		analyzer:   analyzer,
	}, nil
}

// StartConsumer runs the worker-queue consumer until ctx is done.
func (s *Server) StartConsumer(ctx context.Context) <-chan error {
	errs := make(chan error, 1)
	go func() {
		errs <- s.client.Consume(ctx, s.cfg.WorkerQueue, "worker", s.analyzer.HandleJob)
	}()
	return errs
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.client.Close()
	_ = s.redis.Close()
	return s.HTTPServer.Shutdown(ctx)
}
