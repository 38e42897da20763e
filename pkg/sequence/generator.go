package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

type Generator interface {
	NextFichaFolio(ctx context.Context) (string, error)
	NextMovimientoCode(ctx context.Context, cedula string) (string, error)
	NextDerivacionCode(ctx context.Context, zona string) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
	}
}

// NextFichaFolio is the printed folio number of a ficha, monotonic per
// deployment. The security/verification codes are generated separately and
// carry no sequence information.
func (g *RedisGenerator) NextFichaFolio(ctx context.Context) (string, error) {
	key := "seq:ficha"
	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("F%06d", seq), nil
}

func (g *RedisGenerator) NextMovimientoCode(ctx context.Context, cedula string) (string, error) {
	return g.nextDailyCode(ctx, "MOV", cedula)
}

func (g *RedisGenerator) NextDerivacionCode(ctx context.Context, zona string) (string, error) {
	return g.nextDailyCode(ctx, "DRV", zona)
}

func (g *RedisGenerator) nextDailyCode(ctx context.Context, prefix, scope string) (string, error) {
	today := time.Now().UTC().Format("060102")
	key := fmt.Sprintf("seq:%s:%s:%s", prefix, scope, today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}

	if seq == 1 {
		expire := time.Until(time.Now().Truncate(24 * time.Hour).Add(24*time.Hour - time.Second))
		_ = g.rdb.Expire(ctx, key, expire).Err()
	}

	// Base36 + minimal 3 chars, plus 2 random chars so codes are not guessable
	// from the count alone.
	encodedSeq := strings.ToUpper(fmt.Sprintf("%03s", strconv.FormatInt(seq, 36)))
	randSuffix, _ := randomAlphaNumeric(2)

	return fmt.Sprintf("%s-%s-%s%s", prefix, today, encodedSeq, randSuffix), nil
}

func randomAlphaNumeric(n int) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		b[i] = chars[num.Int64()]
	}
	return string(b), nil
}
