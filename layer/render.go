package layer

import (
	"context"
	"net/http"
	"time"

	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/mapping"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"go.uber.org/zap"
)

// Renderer serves entity records as a GeoJSON feature collection. It
// keeps the rendered payload in the cache and serves the cached copy
// as long as no record was updated in the meantime.
type Renderer struct {
	store    database.Store
	cache    Cache
	lang     string
	srid     int
	logger   *zap.Logger
	observer func(entity string, hit bool)
}

func NewRenderer(store database.Store, cache Cache, lang string, srid int, logger *zap.Logger) *Renderer {
	return &Renderer{store: store, cache: cache, lang: lang, srid: srid, logger: logger}
}

// SetCacheObserver registers a callback for cache hits and misses.
func (lr *Renderer) SetCacheObserver(f func(entity string, hit bool)) {
	lr.observer = f
}

func (lr *Renderer) observe(entity string, hit bool) {
	if lr.observer != nil {
		lr.observer(entity, hit)
	}
}

func (lr *Renderer) Serve(w http.ResponseWriter, req *http.Request, e *mapping.Entity) {
	ctx := req.Context()
	latest, hasLatest, err := lr.store.LatestUpdated(ctx, e)
	if err != nil {
		lr.logger.Error("layer: latest timestamp", zap.String("entity", e.Name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if hasLatest {
		if ims, err := http.ParseTime(req.Header.Get("If-Modified-Since")); err == nil {
			if !latest.Truncate(time.Second).After(ims) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	key := CacheKey(lr.lang, e.Name)
	if cachedAt, content, ok := lr.cache.Get(key); ok && hasLatest && !cachedAt.IsZero() && !cachedAt.Before(latest) {
		lr.observe(e.Name, true)
		lr.write(w, latest, hasLatest, content)
		return
	}
	lr.observe(e.Name, false)

	content, err := lr.render(ctx, e)
	if err != nil {
		lr.logger.Error("layer: render", zap.String("entity", e.Name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	lr.cache.Set(key, latest, content)
	lr.write(w, latest, hasLatest, content)
}

func (lr *Renderer) write(w http.ResponseWriter, latest time.Time, hasLatest bool, content []byte) {
	w.Header().Set("Content-Type", "application/json")
	if hasLatest {
		w.Header().Set("Last-Modified", latest.UTC().Format(http.TimeFormat))
	}
	w.Write(content)
}

func (lr *Renderer) render(ctx context.Context, e *mapping.Entity) ([]byte, error) {
	records, _, err := lr.store.List(ctx, e, database.Filter{})
	if err != nil {
		return nil, err
	}
	return Collection(e, records, lr.srid).MarshalJSON()
}

// Collection builds the GeoJSON feature collection of records.
// Geometries are returned in WGS84, records without geometry are
// skipped.
func Collection(e *mapping.Entity, records []*database.Record, srid int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		if f := Feature(e, r, srid); f != nil {
			fc.Append(f)
		}
	}
	return fc
}

// Feature builds a single GeoJSON feature, nil for records without
// geometry.
func Feature(e *mapping.Entity, r *database.Record, srid int) *geojson.Feature {
	if r.Geom == nil {
		return nil
	}
	g := r.Geom
	if srid == 3857 {
		// project.Geometry modifies in place, keep the record intact
		g = project.Geometry(orb.Clone(g), project.Mercator.ToWGS84)
	}
	f := geojson.NewFeature(g)
	f.ID = r.ID
	for name, v := range r.Fields {
		f.Properties[name] = v
	}
	f.Properties["title"] = r.Title(e)
	return f
}
