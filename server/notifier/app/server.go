package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	commonauth "langmod/server/common/auth"
	"langmod/server/common/infra/mq"
	"langmod/server/notifier/api"
	"langmod/server/notifier/service"
)

type Server struct {
	HTTPServer *http.Server

	cfg        Config
	client     *mq.Client
	dispatcher *service.Dispatcher
}

func NewServer(cfg Config) (*Server, error) {
	client, err := mq.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("initialize amqp: %w", err)
	}
	if err := client.Declare(cfg.NotificationQueue); err != nil {
		client.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	transport := service.NewBotClient(cfg.BotAPIURL, cfg.BotTimeout)
	hub := service.NewHub()
	dispatcher := service.NewDispatcher(transport, hub)
	authSvc := commonauth.NewService(cfg.JWTSecret, cfg.JWTTTLMinutes)
	handler := api.NewHandler(hub, authSvc)

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
		cfg:        cfg,
		client:     client,
		dispatcher: dispatcher,
	}, nil
}

// StartConsumer runs the notification-queue consumer until ctx is done.
func (s *Server) StartConsumer(ctx context.Context) <-chan error {
	errs := make(chan error, 1)
	go func() {
		errs <- s.client.Consume(ctx, s.cfg.NotificationQueue, "notifier", s.dispatcher.Handle)
	}()
	return errs
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.client.Close()
	return s.HTTPServer.Shutdown(ctx)
}
