package infra

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"pool-gatekeeper/pool/domain"
)

// RedisCatalog lê os limites provisionados em redis por tooling operacional.
//
// Modelo de dados (prefixo padrão "pool"):
//
//	pool:limits:<resource>  hash com os campos de domain.Limits
//	pool:limitsindex        set com os resource_ids provisionados
//
// O controlador só lê; Seed existe para bootstrap/testes.
type RedisCatalog struct {
	rdb    *redis.Client
	prefix string
}

type RedisCatalogOption func(*RedisCatalog)

func WithCatalogPrefix(prefix string) RedisCatalogOption {
	return func(c *RedisCatalog) { c.prefix = strings.Trim(prefix, ":") }
}

func NewRedisCatalog(rdb *redis.Client, opts ...RedisCatalogOption) *RedisCatalog {
	c := &RedisCatalog{rdb: rdb, prefix: "pool"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implementa domain.Catalog.
func (c *RedisCatalog) Get(ctx context.Context, resourceID int) (domain.Limits, error) {
	fields, err := c.rdb.HGetAll(ctx, c.limitsKey(resourceID)).Result()
	if err != nil {
		return domain.Limits{}, fmt.Errorf("%w: limits of resource %d: %v", domain.ErrStoreUnavailable, resourceID, err)
	}
	if len(fields) == 0 {
		return domain.Limits{}, fmt.Errorf("%w: resource %d", domain.ErrLimitNotFound, resourceID)
	}

	l := domain.Limits{
		ResourceID:       resourceID,
		Name:             fields["name"],
		DBType:           fields["db_type"],
		MaxConnections:   atoiField(fields, "max_connections"),
		ThresholdPercent: atoiField(fields, "threshold_percent"),
		DefaultParallel:  atoiField(fields, "default_parallel"),
		MinParallel:      atoiField(fields, "min_parallel"),
	}
	if err := l.Validate(); err != nil {
		return domain.Limits{}, fmt.Errorf("stored limits for resource %d are invalid: %w", resourceID, err)
	}
	return l, nil
}

// List implementa domain.Catalog, ordenado por recurso.
func (c *RedisCatalog) List(ctx context.Context) ([]domain.Limits, error) {
	members, err := c.rdb.SMembers(ctx, c.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list limits: %v", domain.ErrStoreUnavailable, err)
	}

	out := make([]domain.Limits, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil || id <= 0 {
			continue
		}
		l, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out, nil
}

// Seed grava os limites de um recurso (bootstrap de ambiente e testes).
func (c *RedisCatalog) Seed(ctx context.Context, l domain.Limits) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("limits for resource %d: %w", l.ResourceID, err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.limitsKey(l.ResourceID),
		"name", l.Name,
		"db_type", l.DBType,
		"max_connections", l.MaxConnections,
		"threshold_percent", l.ThresholdPercent,
		"default_parallel", l.DefaultParallel,
		"min_parallel", l.MinParallel,
	)
	pipe.SAdd(ctx, c.indexKey(), l.ResourceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: seed limits of resource %d: %v", domain.ErrStoreUnavailable, l.ResourceID, err)
	}
	return nil
}

func (c *RedisCatalog) limitsKey(resourceID int) string {
	return fmt.Sprintf("%s:limits:%d", c.prefix, resourceID)
}

func (c *RedisCatalog) indexKey() string {
	return c.prefix + ":limitsindex"
}
