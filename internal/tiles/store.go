// Package tiles serves the pre-rendered map rasters. Maps are cut into
// square RGB565 tiles stored as flat files; the store reads them on demand
// and keeps a bounded cache so a pan across the same area does not hit the
// SD card every frame.
package tiles

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ronald-ng/internal/metrics"
)

type StoreConfig struct {
	// Dir is the tile tree root; a tile lives at <dir>/<map>/<col>_<row>.rgb.
	// An empty dir serves no tiles.
	Dir string
	// CacheTiles limits how many decoded tiles stay in memory. When
	// exceeded, least recently used tiles are evicted.
	CacheTiles int
	// TTL controls how long a cached tile is kept without being touched.
	TTL time.Duration
}

type Store struct {
	mu sync.Mutex

	cfg StoreConfig

	tiles map[tileKey]cachedTile

	hits      uint64
	misses    uint64
	evictions uint64
}

type tileKey struct {
	mapName string
	col     int32
	row     int32
}

type cachedTile struct {
	pixels []byte
	usedAt time.Time
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.CacheTiles <= 0 {
		cfg.CacheTiles = 64
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Store{
		cfg:   cfg,
		tiles: make(map[tileKey]cachedTile),
	}
}

// Tile returns the raw RGB565 pixels for one tile, reading through the
// cache. A tile that is not on disk comes back as a wrapped fs.ErrNotExist;
// a tile whose file size does not match tileSize is an error and is not
// cached.
func (s *Store) Tile(mapName string, tileSize, col, row int32) ([]byte, error) {
	if s == nil || s.cfg.Dir == "" {
		return nil, fmt.Errorf("no tile dir: %w", fs.ErrNotExist)
	}

	now := time.Now()
	key := tileKey{mapName: mapName, col: col, row: row}

	s.mu.Lock()
	s.purgeStale(now)
	if t, ok := s.tiles[key]; ok {
		t.usedAt = now
		s.tiles[key] = t
		s.hits++
		s.mu.Unlock()
		metrics.TileCacheHits.Inc()
		return t.pixels, nil
	}
	s.misses++
	s.mu.Unlock()
	metrics.TileCacheMisses.Inc()

	path := filepath.Join(s.cfg.Dir, mapName, fmt.Sprintf("%d_%d.rgb", col, row))
	pixels, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tile: %w", err)
	}
	want := int(tileSize) * int(tileSize) * 2
	if len(pixels) != want {
		return nil, fmt.Errorf("tile %s/%d_%d.rgb is %d bytes, want %d", mapName, col, row, len(pixels), want)
	}

	s.mu.Lock()
	s.tiles[key] = cachedTile{pixels: pixels, usedAt: now}
	for len(s.tiles) > s.cfg.CacheTiles {
		s.evictOldest()
	}
	s.mu.Unlock()

	return pixels, nil
}

// purgeStale and evictOldest run with s.mu held.
func (s *Store) purgeStale(now time.Time) {
	cutoff := now.Add(-s.cfg.TTL)
	for k, t := range s.tiles {
		if t.usedAt.Before(cutoff) {
			delete(s.tiles, k)
			s.evictions++
			metrics.TileCacheEvictions.Inc()
		}
	}
}

func (s *Store) evictOldest() {
	var oldestKey tileKey
	var oldestAt time.Time
	first := true
	for k, t := range s.tiles {
		if first || t.usedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = t.usedAt
			first = false
		}
	}
	if !first {
		delete(s.tiles, oldestKey)
		s.evictions++
		metrics.TileCacheEvictions.Inc()
	}
}

type Snapshot struct {
	Dir       string `json:"dir"`
	Cached    int    `json:"cached"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

func (s *Store) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Dir:       s.cfg.Dir,
		Cached:    len(s.tiles),
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
	}
}
