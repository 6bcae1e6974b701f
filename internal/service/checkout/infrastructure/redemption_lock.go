package infrastructure

import (
	"context"
	"strconv"
	"time"

	"glimmer/internal/pkg/logger"
	"glimmer/internal/zookeeper"
)

// ZookeeperRedemptionLock 用 ZooKeeper 顺序节点锁串行化同一张券的核销
type ZookeeperRedemptionLock struct {
	conn zookeeper.Conn
	wait time.Duration
}

func NewZookeeperRedemptionLock(conn zookeeper.Conn, wait time.Duration) *ZookeeperRedemptionLock {
	return &ZookeeperRedemptionLock{conn: conn, wait: wait}
}

func (l *ZookeeperRedemptionLock) Acquire(ctx context.Context, couponID int64) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(l.conn, "coupon-"+strconv.FormatInt(couponID, 10), l.wait)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(ctx); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("coupon_id", couponID).Msg("failed to release redemption lock")
		}
	}, nil
}
