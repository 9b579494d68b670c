package redisstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"stray-match/internal/domain/ratelimit"
)

const (
	defaultPrefix    = "strays:usage:"
	defaultRetention = 24 * time.Hour
)

// zset es el subconjunto de comandos que usa el log. *redis.Client lo cumple.
type zset interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
	ZCount(ctx context.Context, key, min, max string) *redis.IntCmd
	ZRangeByScoreWithScores(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.ZSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// UsageLog guarda los UsageEvents en un sorted set por usuario (score = unix ms).
// Comparte el log entre réplicas, a diferencia del backend en memoria.
type UsageLog struct {
	client    zset
	prefix    string
	retention time.Duration
}

type Option func(*UsageLog)

func WithPrefix(p string) Option {
	return func(l *UsageLog) {
		if p != "" {
			l.prefix = p
		}
	}
}

// WithRetention debe cubrir la ventana más larga (daily).
func WithRetention(d time.Duration) Option {
	return func(l *UsageLog) {
		if d > 0 {
			l.retention = d
		}
	}
}

func NewUsageLog(client zset, opts ...Option) *UsageLog {
	l := &UsageLog{
		client:    client,
		prefix:    defaultPrefix,
		retention: defaultRetention,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dial abre el cliente y hace ping antes de devolverlo.
func Dial(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (l *UsageLog) key(userID string) string { return l.prefix + userID }

func (l *UsageLog) Append(ctx context.Context, e ratelimit.UsageEvent) error {
	member := e.ID
	if member == "" {
		member = uuid.NewString()
	}
	key := l.key(e.UserID)
	at := e.Timestamp.UnixMilli()

	if err := l.client.ZAdd(ctx, key, redis.Z{Score: float64(at), Member: member}).Err(); err != nil {
		return err
	}

	// Recorte de lo que ya no entra en ninguna ventana; si falla solo crece el set.
	cutoff := at - l.retention.Milliseconds()
	_ = l.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err()

	return l.client.Expire(ctx, key, l.retention).Err()
}

func (l *UsageLog) CountSince(ctx context.Context, userID string, since time.Time) (ratelimit.WindowCount, error) {
	key := l.key(userID)
	min := strconv.FormatInt(since.UnixMilli(), 10)

	n, err := l.client.ZCount(ctx, key, min, "+inf").Result()
	if err != nil {
		return ratelimit.WindowCount{}, err
	}
	if n == 0 {
		return ratelimit.WindowCount{}, nil
	}

	oldest, err := l.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   min,
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return ratelimit.WindowCount{}, err
	}

	wc := ratelimit.WindowCount{Count: int(n)}
	if len(oldest) > 0 {
		wc.Oldest = time.UnixMilli(int64(oldest[0].Score)).UTC()
	}
	return wc, nil
}
