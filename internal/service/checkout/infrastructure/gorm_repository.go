package infrastructure

import (
	"context"
	"errors"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"glimmer/internal/service/checkout/domain"
)

// GormCouponRepository 是 CouponRepository 的 GORM 实现
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository 创建一个新的 GORM 仓储实例
func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// FindByCode 按规范码查找
func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var model CouponModel
	err := r.db.WithContext(ctx).Where("code = ?", domain.CanonicalCouponCode(code)).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, pkgerrors.Wrapf(err, "find coupon %s", code)
	}
	return ToDomainCoupon(&model), nil
}

// IncrementUsage 只在数据库侧做 times_used + 1，不读改写
func (r *GormCouponRepository) IncrementUsage(ctx context.Context, couponID int64) error {
	res := r.db.WithContext(ctx).
		Model(&CouponModel{}).
		Where("id = ?", couponID).
		UpdateColumn("times_used", gorm.Expr("times_used + ?", 1))
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "increment usage of coupon %d", couponID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCouponNotFound
	}
	return nil
}

// GormOrderLedger 是 OrderLedger 的 GORM 实现，只提供创建
type GormOrderLedger struct {
	db *gorm.DB
}

func NewGormOrderLedger(db *gorm.DB) *GormOrderLedger {
	return &GormOrderLedger{db: db}
}

// Create 分配订单ID并连同行项目一起写入
func (l *GormOrderLedger) Create(ctx context.Context, order *domain.Order) (string, error) {
	id := uuid.NewString()
	snapshot := *order
	snapshot.ID = id

	if err := l.db.WithContext(ctx).Create(FromDomainOrder(&snapshot)).Error; err != nil {
		return "", pkgerrors.Wrap(err, "insert order")
	}
	return id, nil
}

// AutoMigrate 建表，仅在配置允许时由 main 调用
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CouponModel{}, &OrderModel{}, &OrderItemModel{})
}
