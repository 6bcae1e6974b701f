// cmd/checkout-service/main.go
package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"glimmer/internal/pkg/bootstrap"
	"glimmer/internal/pkg/httpclient"
	"glimmer/internal/pkg/logger"
	"glimmer/internal/pkg/mq"
	"glimmer/internal/pkg/redis"
	"glimmer/internal/service/checkout/application"
	"glimmer/internal/service/checkout/domain"
	"glimmer/internal/service/checkout/infrastructure"
	"glimmer/internal/service/checkout/infrastructure/rule"
	"glimmer/internal/service/checkout/interfaces"
	"glimmer/internal/zookeeper"
)

const serviceName = "checkout-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg := bootstrap.Init(serviceName)
	log := logger.Ctx(context.Background())

	var closers []func() error

	// 1. 订单账本与券库
	db, err := gorm.Open(mysql.Open(cfg.Infra.MySQL.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect mysql")
	}
	if cfg.Infra.MySQL.AutoMigrate {
		if err := infrastructure.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate schema")
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, sqlDB.Close)
	}
	coupons := infrastructure.NewGormCouponRepository(db)
	ledger := infrastructure.NewGormOrderLedger(db)

	// 2. 会话存储：未配置 Redis 时退回进程内存储
	var store domain.SessionStore
	if cfg.Infra.Redis.Addrs != "" {
		redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize redis client")
		}
		closers = append(closers, redisClient.Close)
		store = infrastructure.NewRedisSessionStore(redisClient, cfg.Checkout.SessionTTL)
	} else {
		log.Warn().Msg("redis not configured, sessions are kept in memory")
		store = infrastructure.NewMemorySessionStore()
	}

	// 3. 事件与可选的核销锁
	kafkaWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.BrokerList(), cfg.Infra.Kafka.OrderTopic)
	closers = append(closers, kafkaWriter.Close)

	var lock domain.RedemptionLock = domain.NoopRedemptionLock{}
	if cfg.Checkout.RedemptionLock == "zookeeper" {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.ServerList(), cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect zookeeper")
		}
		closers = append(closers, func() error { conn.Close(); return nil })
		lock = infrastructure.NewZookeeperRedemptionLock(conn, 10*time.Second)
	}

	conditions, err := rule.NewCELConditionEvaluator()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize coupon condition evaluator")
	}

	tracer := otel.Tracer(serviceName)
	methods := make(domain.PaymentMethods, 0, len(cfg.Checkout.PaymentMethods))
	for _, m := range cfg.Checkout.PaymentMethods {
		methods = append(methods, domain.PaymentMethod{Code: m.Code, Label: m.Label, Enabled: m.Enabled})
	}

	sessions := application.NewSessions(store, coupons, tracer)
	couponSvc := application.NewCouponService(coupons, conditions, tracer)
	flow := application.NewCheckoutFlow(methods, tracer)
	committer := application.NewOrderCommitter(coupons, ledger, tracer,
		application.WithOrderEvents(infrastructure.NewOrderEventsKafkaAdapter(kafkaWriter)),
		application.WithRedemptionLock(lock),
		application.WithConditions(conditions),
		application.WithCommitTimeout(cfg.Checkout.CommitTimeout),
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			// 商品目录：启用 Nacos 时按服务名发现，否则使用固定地址
			client := httpclient.NewClient(tracer)
			var catalog domain.Catalog = infrastructure.NewStaticCatalog(client, appCtx.Config.Checkout.CatalogURL)
			if appCtx.Nacos != nil && appCtx.Config.Checkout.CatalogService != "" {
				catalog = infrastructure.NewDiscoveredCatalog(client, appCtx.Nacos, appCtx.Config.Checkout.CatalogService)
			}

			handler := interfaces.NewCheckoutHandler(sessions, couponSvc, flow, committer, catalog,
				interfaces.NewAuthenticator(appCtx.Config.Auth.JWTSecret), appCtx.Config.Checkout.SessionTTL)
			handler.RegisterRoutes(appCtx.Mux)
			appCtx.Mux.HandleFunc("GET /healthz", interfaces.HealthHandler)
			appCtx.Mux.Handle("GET /metrics", promhttp.Handler())
		},
		Cleanup: func(ctx context.Context) {
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i](); err != nil {
					logger.Ctx(ctx).Error().Err(err).Msg("error releasing resource")
				}
			}
		},
	})
}
