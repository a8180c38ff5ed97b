package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/utils"
	"github.com/redis/go-redis/v9"
)

const (
	redisSequenceKeyspace = "sequence:"

	redisFieldValue     = "value"
	redisFieldCreatedAt = "created_at"
	redisFieldUpdatedAt = "updated_at"

	redisScanBatch = 200
)

const defaultWaitAOFTimeout = time.Second

// RedisDurability is the WAITAOF acknowledgement a write needs before it is
// reported: LocalFsyncs (0 or 1) requires the server's own AOF fsync,
// Replicas the number of replicas that fsynced it. The zero value trusts
// EXEC alone, which a restart from RDB or an everysec AOF can roll back.
type RedisDurability struct {
	LocalFsyncs int
	Replicas    int
	Timeout     time.Duration
}

func (d RedisDurability) required() bool {
	return d.LocalFsyncs > 0 || d.Replicas > 0
}

// RedisOption configures a RedisSequenceCounterRepository
type RedisOption func(*RedisSequenceCounterRepository)

// WithRedisDurability makes writes wait for WAITAOF before returning
func WithRedisDurability(d RedisDurability) RedisOption {
	return func(r *RedisSequenceCounterRepository) {
		if d.required() && d.Timeout <= 0 {
			d.Timeout = defaultWaitAOFTimeout
		}
		r.durability = d
	}
}

// txPipeliner is satisfied by clients and by a single pinned connection
type txPipeliner interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// RedisSequenceCounterRepository stores each counter as a hash
// <prefix>sequence:<name> {value, created_at, updated_at}. HINCRBY creates
// a missing hash/field at 0 before adding, so allocation is one atomic
// MULTI/EXEC block.
type RedisSequenceCounterRepository struct {
	rc         redis.UniversalClient
	prefix     string
	durability RedisDurability
}

// NewRedisSequenceCounterRepository creates a redis backed counter repository
func NewRedisSequenceCounterRepository(rc redis.UniversalClient, prefix string, opts ...RedisOption) SequenceCounterRepository {
	r := &RedisSequenceCounterRepository{rc: rc, prefix: prefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisSequenceCounterRepository) key(name string) string {
	return r.prefix + redisSequenceKeyspace + name
}

func (r *RedisSequenceCounterRepository) Increment(ctx context.Context, name string) (int64, error) {
	key := r.key(name)
	now := utils.UTCNow().Format(time.RFC3339Nano)

	var value int64
	err := r.durableWrite(ctx, func(tx txPipeliner) error {
		var incr *redis.IntCmd
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSetNX(ctx, key, redisFieldCreatedAt, now)
			incr = pipe.HIncrBy(ctx, key, redisFieldValue, 1)
			pipe.HSet(ctx, key, redisFieldUpdatedAt, now)
			return nil
		})
		if err != nil {
			return err
		}
		value, err = incr.Result()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence %q: %w", name, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("failed to increment sequence %q: %w", name, ErrNoSequenceValue)
	}
	return value, nil
}

func (r *RedisSequenceCounterRepository) ByName(ctx context.Context, name string) (*models.SequenceCounter, error) {
	fields, err := r.rc.HGetAll(ctx, r.key(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to find sequence %q: %w", name, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseRedisCounter(name, fields)
}

// ByFilter scans the counter keyspace; results are ordered by name and
// orderBy is ignored.
func (r *RedisSequenceCounterRepository) ByFilter(ctx context.Context, filter models.SequenceCounterFilter, _ string, limit, offset int) ([]*models.SequenceCounter, error) {
	base := r.prefix + redisSequenceKeyspace
	match := base + "*"
	if filter.Name != nil {
		match = base + *filter.Name
	} else if filter.NamePrefix != nil {
		match = base + *filter.NamePrefix + "*"
	}

	var keys []string
	iter := r.rc.Scan(ctx, 0, match, redisScanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}
	if len(keys) == 0 {
		return []*models.SequenceCounter{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := r.rc.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.HGetAll(ctx, k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}

	rows := make([]*models.SequenceCounter, 0, len(keys))
	for i, k := range keys {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		counter, err := parseRedisCounter(strings.TrimPrefix(k, base), fields)
		if err != nil {
			return nil, err
		}
		if matchesCounterFilter(counter, filter) {
			rows = append(rows, counter)
		}
	}

	return pageCounters(rows, limit, offset), nil
}

func (r *RedisSequenceCounterRepository) SaveIfAbsent(ctx context.Context, counter *models.SequenceCounter) (bool, error) {
	if counter == nil {
		return false, errors.New("sequence counter payload is nil")
	}
	key := r.key(counter.Name)

	now := utils.UTCNow()
	if counter.CreatedAt.IsZero() {
		counter.CreatedAt = now
	}
	if counter.UpdatedAt.IsZero() {
		counter.UpdatedAt = now
	}

	var created *redis.BoolCmd
	err := r.durableWrite(ctx, func(tx txPipeliner) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			created = pipe.HSetNX(ctx, key, redisFieldValue, counter.LastValue)
			pipe.HSetNX(ctx, key, redisFieldCreatedAt, counter.CreatedAt.UTC().Format(time.RFC3339Nano))
			pipe.HSetNX(ctx, key, redisFieldUpdatedAt, counter.UpdatedAt.UTC().Format(time.RFC3339Nano))
			return nil
		})
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to save sequence %q: %w", counter.Name, err)
	}
	return created.Val(), nil
}

// durableWrite runs write and, when durability is required, WAITAOF on the
// same connection: WAITAOF only covers writes issued by its own connection.
// A short acknowledgement fails the call although EXEC already applied it;
// the caller sees an unknown outcome and the number is skipped, never reused.
func (r *RedisSequenceCounterRepository) durableWrite(ctx context.Context, write func(txPipeliner) error) error {
	if !r.durability.required() {
		return write(r.rc)
	}

	client, ok := r.rc.(*redis.Client)
	if !ok {
		return ErrDurabilityUnsupported
	}
	conn := client.Conn()
	defer conn.Close()

	if err := write(conn); err != nil {
		return err
	}
	return r.waitAOF(ctx, conn)
}

func (r *RedisSequenceCounterRepository) waitAOF(ctx context.Context, conn *redis.Conn) error {
	d := r.durability
	// WAITAOF replies [numlocal, numreplicas]; go-redis' WaitAOF reads a
	// single integer, so the command is issued directly.
	cmd := redis.NewIntSliceCmd(ctx, "waitaof", d.LocalFsyncs, d.Replicas, d.Timeout.Milliseconds())
	if err := conn.Process(ctx, cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteNotDurable, err)
	}

	acks := cmd.Val()
	if len(acks) != 2 {
		return fmt.Errorf("%w: unexpected WAITAOF reply %v", ErrWriteNotDurable, acks)
	}
	if acks[0] < int64(d.LocalFsyncs) || acks[1] < int64(d.Replicas) {
		return fmt.Errorf("%w: fsynced locally %d/%d, on replicas %d/%d",
			ErrWriteNotDurable, acks[0], d.LocalFsyncs, acks[1], d.Replicas)
	}
	return nil
}

func parseRedisCounter(name string, fields map[string]string) (*models.SequenceCounter, error) {
	value, err := strconv.ParseInt(fields[redisFieldValue], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt value for sequence %q: %w", name, err)
	}
	counter := &models.SequenceCounter{Name: name, LastValue: value}
	if t, err := time.Parse(time.RFC3339Nano, fields[redisFieldCreatedAt]); err == nil {
		counter.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields[redisFieldUpdatedAt]); err == nil {
		counter.UpdatedAt = t
	}
	return counter, nil
}
