// cmd/order-notifier/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"glimmer/internal/pkg/bootstrap"
	"glimmer/internal/pkg/logger"
	"glimmer/internal/pkg/mq"
	"glimmer/internal/pkg/tracing"
	"glimmer/internal/service/checkout/infrastructure"
	"glimmer/internal/service/checkout/interfaces"
	"glimmer/internal/service/notifier"
)

const serviceName = "order-notifier"

func main() {
	cfg := bootstrap.Init(serviceName)
	log := logger.Ctx(context.Background())

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 每个节点使用独立的消费组，这样每个节点都能收到全部事件，只推送给连在本节点上的买家
	nodeID := serviceName + "-" + uuid.NewString()[:8]
	reader := mq.NewKafkaReader(cfg.Infra.Kafka.BrokerList(), cfg.Infra.Kafka.OrderTopic, cfg.Infra.Kafka.ConsumerGroup+"-"+nodeID)

	hub := notifier.NewHub()
	consumer := infrastructure.NewOrderPlacedConsumer(reader, hub.HandleOrderPlaced)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", hub.ServeWS(interfaces.NewAuthenticator(cfg.Auth.JWTSecret)))
	mux.HandleFunc("GET /healthz", interfaces.HealthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("node", nodeID).Msgf("%s listening on :%d", serviceName, cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info().Str("topic", cfg.Infra.Kafka.OrderTopic).Msg("consuming OrderPlaced events")
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("order notifier stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reader.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing kafka reader")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	}
	log.Info().Msgf("Service %s gracefully shut down.", serviceName)
}
