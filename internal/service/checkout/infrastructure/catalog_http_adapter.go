package infrastructure

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"glimmer/internal/pkg/httpclient"
	"glimmer/internal/service/checkout/domain"
)

const (
	catalogProductPath = "/api/products/"
	catalogSlugPath    = "/api/products/slug/"
)

// BaseURLResolver 服务发现，*nacos.Client 满足该接口
type BaseURLResolver interface {
	ResolveBaseURL(ctx context.Context, serviceName string) (string, error)
}

// CatalogHTTPAdapter 实现了 domain.Catalog，只读调用商品目录服务
type CatalogHTTPAdapter struct {
	client  *httpclient.Client
	baseURL func(ctx context.Context) (string, error)
}

// NewStaticCatalog 使用固定地址
func NewStaticCatalog(client *httpclient.Client, baseURL string) *CatalogHTTPAdapter {
	base := strings.TrimRight(baseURL, "/")
	return &CatalogHTTPAdapter{
		client:  client,
		baseURL: func(context.Context) (string, error) { return base, nil },
	}
}

// NewDiscoveredCatalog 每次调用前通过注册中心选择一个健康实例
func NewDiscoveredCatalog(client *httpclient.Client, resolver BaseURLResolver, serviceName string) *CatalogHTTPAdapter {
	return &CatalogHTTPAdapter{
		client: client,
		baseURL: func(ctx context.Context) (string, error) {
			return resolver.ResolveBaseURL(ctx, serviceName)
		},
	}
}

type productDTO struct {
	ID       string          `json:"id"`
	Slug     string          `json:"slug"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Images   []string        `json:"images"`
}

func (a *CatalogHTTPAdapter) FindByID(ctx context.Context, id string) (*domain.ProductRef, error) {
	return a.fetch(ctx, catalogProductPath+url.PathEscape(id))
}

func (a *CatalogHTTPAdapter) FindBySlug(ctx context.Context, slug string) (*domain.ProductRef, error) {
	return a.fetch(ctx, catalogSlugPath+url.PathEscape(slug))
}

func (a *CatalogHTTPAdapter) fetch(ctx context.Context, path string) (*domain.ProductRef, error) {
	base, err := a.baseURL(ctx)
	if err != nil {
		return nil, domain.Unavailable("could not resolve catalog service", err)
	}
	var dto productDTO
	if err := a.client.GetJSON(ctx, base+path, &dto); err != nil {
		if errors.Is(err, httpclient.ErrNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.Unavailable("catalog request failed", err)
	}
	if dto.ID == "" {
		return nil, domain.ErrProductNotFound
	}
	return &domain.ProductRef{
		ID:       dto.ID,
		Slug:     dto.Slug,
		Name:     dto.Name,
		Price:    dto.Price,
		Category: dto.Category,
		Images:   dto.Images,
	}, nil
}
