package infra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pool-gatekeeper/pool/domain"
)

// RedisRegistry guarda as reservas em redis, compartilhadas entre instâncias
// do gatekeeper.
//
// Modelo de dados (prefixo padrão "pool"):
//
//	pool:resv:<resource>:<run_id>  hash da reserva, com TTL nativo
//	pool:resvindex:<resource>      set com os run_ids do recurso
//
// A expiração é o TTL do próprio redis; membros do índice cujo hash sumiu
// são limpos de forma oportunista durante as leituras. O Put roda um script
// Lua que refaz a soma de uso no servidor e só grava se couber no teto:
// é a serialização no nível do store que o deployment multi-instância exige.
type RedisRegistry struct {
	rdb    *redis.Client
	prefix string
}

type RedisRegistryOption func(*RedisRegistry)

func WithRegistryPrefix(prefix string) RedisRegistryOption {
	return func(r *RedisRegistry) { r.prefix = strings.Trim(prefix, ":") }
}

func NewRedisRegistry(rdb *redis.Client, opts ...RedisRegistryOption) *RedisRegistry {
	r := &RedisRegistry{rdb: rdb, prefix: "pool"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resultados inteiros dos scripts (códigos negativos são falhas esperadas).
const (
	scriptDuplicate = -1
	scriptCapacity  = -2
)

// putScript refaz a soma de uso e insere a reserva na mesma execução.
// Membros órfãos do índice (hash expirado) são removidos de passagem.
var putScript = redis.NewScript(`
local index = KEYS[1]
local base = ARGV[1]
local runid = ARGV[2]
local parallel = tonumber(ARGV[3])
local ceiling = tonumber(ARGV[4])
local ttlms = tonumber(ARGV[5])

if redis.call('EXISTS', base .. runid) == 1 then
  return -1
end

local usage = 0
for _, m in ipairs(redis.call('SMEMBERS', index)) do
  local p = redis.call('HGET', base .. m, 'parallel')
  if p then
    usage = usage + tonumber(p)
  else
    redis.call('SREM', index, m)
  end
end

if usage + parallel > ceiling then
  return -2
end

local key = base .. runid
redis.call('HSET', key,
  'run_id', runid,
  'owner_id', ARGV[6],
  'label', ARGV[7],
  'parallel', parallel,
  'requested', ARGV[8],
  'created_at', ARGV[9])
redis.call('PEXPIRE', key, ttlms)
redis.call('SADD', index, runid)
return usage + parallel
`)

var usageScript = redis.NewScript(`
local usage = 0
for _, m in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local p = redis.call('HGET', ARGV[1] .. m, 'parallel')
  if p then
    usage = usage + tonumber(p)
  else
    redis.call('SREM', KEYS[1], m)
  end
end
return usage
`)

var removeScript = redis.NewScript(`
local key = ARGV[1] .. ARGV[2]
redis.call('SREM', KEYS[1], ARGV[2])
local p = redis.call('HGET', key, 'parallel')
if not p then
  return -1
end
redis.call('DEL', key)
return tonumber(p)
`)

// CurrentUsage implementa domain.Registry.
func (r *RedisRegistry) CurrentUsage(ctx context.Context, resourceID int) (int, error) {
	usage, err := usageScript.Run(ctx, r.rdb, []string{r.indexKey(resourceID)}, r.baseKey(resourceID)).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: usage of resource %d: %v", domain.ErrStoreUnavailable, resourceID, err)
	}
	return usage, nil
}

// Put implementa domain.Registry via script condicional.
func (r *RedisRegistry) Put(ctx context.Context, res domain.Reservation, ceiling int) error {
	ttl := res.ExpiresAt.Sub(res.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("%w: reservation already expired at write time", domain.ErrInvalidArgument)
	}

	result, err := putScript.Run(ctx, r.rdb,
		[]string{r.indexKey(res.ResourceID)},
		r.baseKey(res.ResourceID),
		res.RunID,
		res.Parallel,
		ceiling,
		ttl.Milliseconds(),
		res.OwnerID,
		res.Label,
		res.RequestedParallel,
		res.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("%w: put reservation %s on resource %d: %v", domain.ErrStoreUnavailable, res.RunID, res.ResourceID, err)
	}

	switch result {
	case scriptDuplicate:
		return fmt.Errorf("%w: run %s on resource %d", domain.ErrDuplicateReservation, res.RunID, res.ResourceID)
	case scriptCapacity:
		return fmt.Errorf("%w: resource %d", domain.ErrCapacityRevoked, res.ResourceID)
	}
	return nil
}

// Remove implementa domain.Registry.
func (r *RedisRegistry) Remove(ctx context.Context, resourceID int, runID string) (int, error) {
	released, err := removeScript.Run(ctx, r.rdb, []string{r.indexKey(resourceID)}, r.baseKey(resourceID), runID).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: remove reservation %s on resource %d: %v", domain.ErrStoreUnavailable, runID, resourceID, err)
	}
	if released == scriptDuplicate {
		return 0, fmt.Errorf("%w: run %s on resource %d", domain.ErrReservationNotFound, runID, resourceID)
	}
	return released, nil
}

// ListActive implementa domain.Registry. ExpiresAt é reconstruído a partir
// do TTL restante da chave.
func (r *RedisRegistry) ListActive(ctx context.Context, resourceID int) ([]domain.Reservation, error) {
	members, err := r.rdb.SMembers(ctx, r.indexKey(resourceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list resource %d: %v", domain.ErrStoreUnavailable, resourceID, err)
	}

	now := time.Now()
	out := make([]domain.Reservation, 0, len(members))
	for _, runID := range members {
		key := r.baseKey(resourceID) + runID

		fields, err := r.rdb.HGetAll(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: read reservation %s: %v", domain.ErrStoreUnavailable, runID, err)
		}
		if len(fields) == 0 {
			// Hash expirou; limpa o índice de passagem.
			_ = r.rdb.SRem(ctx, r.indexKey(resourceID), runID).Err()
			continue
		}

		res := domain.Reservation{
			ResourceID:        resourceID,
			RunID:             runID,
			OwnerID:           fields["owner_id"],
			Label:             fields["label"],
			Parallel:          atoiField(fields, "parallel"),
			RequestedParallel: atoiField(fields, "requested"),
		}
		if t, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
			res.CreatedAt = t
		}
		if ttl, err := r.rdb.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
			res.ExpiresAt = now.Add(ttl)
		}
		out = append(out, res)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *RedisRegistry) baseKey(resourceID int) string {
	return fmt.Sprintf("%s:resv:%d:", r.prefix, resourceID)
}

func (r *RedisRegistry) indexKey(resourceID int) string {
	return fmt.Sprintf("%s:resvindex:%d", r.prefix, resourceID)
}

func atoiField(fields map[string]string, name string) int {
	v, err := strconv.Atoi(fields[name])
	if err != nil {
		return 0
	}
	return v
}
