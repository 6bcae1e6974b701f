// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersPlaced 成功落库的订单数
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glimmer",
		Subsystem: "checkout",
		Name:      "orders_placed_total",
		Help:      "Number of orders committed to the ledger.",
	})

	// OrderFailures 按失败阶段统计下单失败次数
	OrderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glimmer",
		Subsystem: "checkout",
		Name:      "order_failures_total",
		Help:      "Order placement failures by stage.",
	}, []string{"stage"})

	// CouponRejections 按错误类型统计优惠券被拒次数
	CouponRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glimmer",
		Subsystem: "checkout",
		Name:      "coupon_rejections_total",
		Help:      "Coupon applications rejected by reason.",
	}, []string{"reason"})

	// PersistenceWarnings 会话持久化失败次数（非致命）
	PersistenceWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glimmer",
		Subsystem: "session",
		Name:      "persistence_warnings_total",
		Help:      "Session store writes that failed and were only logged.",
	})

	// NotificationsPushed order-notifier 推送到 websocket 的消息数
	NotificationsPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glimmer",
		Subsystem: "notifier",
		Name:      "pushed_total",
		Help:      "Order notifications pushed to connected buyers.",
	}, []string{"result"})
)
