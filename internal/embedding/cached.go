package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"time"

	"github.com/pitabwire/util"
	"golang.org/x/sync/singleflight"

	"github.com/antinvestor/decider/internal/cache"
)

var errCorruptEntry = errors.New("corrupt cached embedding")

// CachedEngine serves repeated texts from a cache and collapses concurrent
// requests for the same text into one upstream call. Cache errors are logged
// and never fail an embedding.
type CachedEngine struct {
	inner Engine
	store cache.Store
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedEngine wraps inner with store. A nil store disables caching but
// keeps request collapsing.
func NewCachedEngine(inner Engine, store cache.Store, ttl time.Duration) *CachedEngine {
	return &CachedEngine{inner: inner, store: store, ttl: ttl}
}

// Embed implements Engine.
func (c *CachedEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	log := util.Log(ctx)

	if c.store != nil {
		data, found, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			log.WithError(err).Warn("embedding cache read failed", "engine", c.inner.Name())
		case found:
			vec, decodeErr := decodeVector(data)
			if decodeErr == nil {
				log.Debug("embedding cache hit", "engine", c.inner.Name())
				return vec, nil
			}
			log.WithError(decodeErr).Warn("discarding cached embedding", "engine", c.inner.Name())
		}
	}

	// The shared call must outlive any single caller; each caller stops
	// waiting on its own context instead.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		vec, embedErr := c.inner.Embed(flightCtx, text)
		if embedErr != nil {
			return nil, embedErr
		}
		if c.store != nil {
			if setErr := c.store.Set(flightCtx, key, encodeVector(vec), c.ttl); setErr != nil {
				log.WithError(setErr).Warn("embedding cache write failed", "engine", c.inner.Name())
			}
		}
		return vec, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	vec := res.Val.([]float32)
	if res.Shared {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	}
	return vec, nil
}

// Name implements Engine.
func (c *CachedEngine) Name() string {
	return c.inner.Name()
}

func (c *CachedEngine) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + c.inner.Name() + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	data := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(f))
	}
	return data
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errCorruptEntry
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}
