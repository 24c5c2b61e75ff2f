// Package layer renders entity records as GeoJSON map layers. Layers
// are cached with the latest record timestamp and rendered again only
// when a record changed.
package layer

import (
	"encoding/binary"
	"time"

	"github.com/omniscale/mapent/cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Cache stores rendered layer payloads together with the latest
// record timestamp they contain.
type Cache interface {
	Get(key string) (latest time.Time, content []byte, ok bool)
	Set(key string, latest time.Time, content []byte)
}

// CacheKey builds the cache key of one entity layer.
func CacheKey(lang, modelname string) string {
	return lang + "_" + modelname + "_layer_json"
}

// BadgerCache stores layer payloads in the shared cache database.
type BadgerCache struct {
	cache  *cache.Cache
	logger *zap.Logger
}

func NewBadgerCache(c *cache.Cache, logger *zap.Logger) *BadgerCache {
	return &BadgerCache{cache: c, logger: logger}
}

func (b *BadgerCache) Get(key string) (time.Time, []byte, bool) {
	v, err := b.cache.Get([]byte(key))
	if err != nil {
		b.logger.Warn("layer cache read", zap.String("key", key), zap.Error(err))
		return time.Time{}, nil, false
	}
	if v == nil {
		return time.Time{}, nil, false
	}
	latest, content, err := decodeEntry(v)
	if err != nil {
		b.logger.Warn("layer cache entry", zap.String("key", key), zap.Error(err))
		return time.Time{}, nil, false
	}
	return latest, content, true
}

func (b *BadgerCache) Set(key string, latest time.Time, content []byte) {
	if err := b.cache.Put([]byte(key), encodeEntry(latest, content)); err != nil {
		b.logger.Warn("layer cache write", zap.String("key", key), zap.Error(err))
	}
}

// encodeEntry prefixes the payload with the latest timestamp as
// big endian unix nanoseconds, zero for unknown.
func encodeEntry(latest time.Time, content []byte) []byte {
	buf := make([]byte, 8+len(content))
	var ts int64
	if !latest.IsZero() {
		ts = latest.UnixNano()
	}
	binary.BigEndian.PutUint64(buf[:8], uint64(ts))
	copy(buf[8:], content)
	return buf
}

func decodeEntry(v []byte) (time.Time, []byte, error) {
	if len(v) < 8 {
		return time.Time{}, nil, errors.New("cache entry too short")
	}
	ts := int64(binary.BigEndian.Uint64(v[:8]))
	var latest time.Time
	if ts != 0 {
		latest = time.Unix(0, ts)
	}
	return latest, v[8:], nil
}
