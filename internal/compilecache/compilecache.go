// Package compilecache implements a scoped compile cache: each unique
// program is compiled at most once per retention window, with a
// metadata.json index and 24h TTL eviction on Close.
//
// The cache keys and indexes by a stable digest of the program's
// identity. The embedded ugo runtime has no stable on-disk bytecode
// serialization, so a cache entry persists its program's source text
// rather than opaque bytecode, and a cache hit after a process restart
// recompiles from that source through the configured Executor. Hit/miss
// bookkeeping, concurrent load/save, TTL eviction, orphan cleanup, and
// corrupt-metadata tolerance are unaffected by that choice.
package compilecache

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/weavedoc/textgen/internal/executor"
	"github.com/weavedoc/textgen/internal/xerrors"
)

// magicNumber stands in for CPython's bytecode format tag: it
// identifies the compiled-program format this build understands, so a
// future incompatible change to how programs are cached can invalidate
// old entries by bumping it.
const magicNumber = "ugo-source-v1"

// retention is how long an unused entry survives a Close before eviction.
const retention = 24 * time.Hour

// CacheKey identifies one compiled program for cache lookup purposes.
type CacheKey struct {
	SourceRepr   string
	FilenameRepr string
	MagicNumber  string
	Mode         string
}

func (k CacheKey) digest() uint64 {
	return xxhash.Sum64([]byte(k.SourceRepr + "\x00" + k.FilenameRepr + "\x00" + k.MagicNumber + "\x00" + k.Mode))
}

// entry is the in-memory value: MetadataValue plus the compiled code.
type entry struct {
	key        CacheKey
	cacheName  string
	accessTime time.Time
	code       executor.Code
}

type metadataRecord struct {
	Digest       uint64    `json:"digest"`
	CacheName    string    `json:"cache_name"`
	AccessTime   time.Time `json:"access_time"`
	SourceRepr   string    `json:"source_repr"`
	FilenameRepr string    `json:"filename_repr"`
	MagicNumber  string    `json:"magic_number"`
	Mode         string    `json:"mode"`
}

// Cache is the compile cache. Open it at the start of a run and Close
// it at the end. A Cache with an empty folder is a pass-through that
// always compiles directly (the CLI's `--no-code-cache` mode).
type Cache struct {
	folder   string
	executor executor.Executor

	mu      sync.Mutex
	entries map[uint64]*entry
}

// Open mkdir -p's folder, loads metadata.json (a missing or corrupt
// file is treated as empty), and concurrently recompiles every
// surviving entry's source; any entry whose cached file is missing or
// no longer compiles is dropped and its orphan file removed.
func Open(folder string, ex executor.Executor) (*Cache, error) {
	if folder == "" {
		return &Cache{executor: ex}, nil
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, xerrors.NewCacheError(folder, err)
	}

	c := &Cache{folder: folder, executor: ex, entries: make(map[uint64]*entry)}

	records, err := readMetadata(folder)
	if err != nil {
		records = nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			path := filepath.Join(folder, rec.CacheName)
			source, readErr := os.ReadFile(path)
			if readErr != nil {
				_ = os.Remove(path)
				log.Printf("compilecache: dropping orphan entry %s: %v", rec.CacheName, readErr)
				return nil
			}
			code, compileErr := ex.Compile(string(source), executor.CompileOptions{Filename: rec.FilenameRepr, Mode: rec.Mode})
			if compileErr != nil {
				_ = os.Remove(path)
				log.Printf("compilecache: dropping unrecompilable entry %s: %v", rec.CacheName, compileErr)
				return nil
			}
			key := CacheKey{SourceRepr: rec.SourceRepr, FilenameRepr: rec.FilenameRepr, MagicNumber: rec.MagicNumber, Mode: rec.Mode}
			mu.Lock()
			c.entries[rec.Digest] = &entry{key: key, cacheName: rec.CacheName, accessTime: rec.AccessTime, code: code}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return c, nil
}

// Compile returns the cached Code for source if the key hits, touching
// its access time; otherwise it compiles through the underlying
// Executor, stores the result under a freshly minted cache name, and
// returns it.
func (c *Cache) Compile(source string, opts executor.CompileOptions) (executor.Code, error) {
	if c.folder == "" {
		return c.executor.Compile(source, opts)
	}

	key := CacheKey{SourceRepr: source, FilenameRepr: opts.Filename, MagicNumber: magicNumber, Mode: opts.Mode}
	digest := key.digest()

	c.mu.Lock()
	if e, ok := c.entries[digest]; ok {
		e.accessTime = time.Now()
		code := e.code
		c.mu.Unlock()
		return code, nil
	}
	c.mu.Unlock()

	code, err := c.executor.Compile(source, opts)
	if err != nil {
		return executor.Code{}, err
	}

	c.mu.Lock()
	c.entries[digest] = &entry{key: key, cacheName: uuid.NewString(), accessTime: time.Now(), code: code}
	c.mu.Unlock()
	return code, nil
}

// Close evicts entries untouched for 24h, persists any surviving entry
// whose on-disk file is missing, and rewrites metadata.json in a stable
// (digest-sorted) order.
func (c *Cache) Close() error {
	if c.folder == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var g errgroup.Group
	for digest, e := range c.entries {
		digest, e := digest, e
		if now.Sub(e.accessTime) >= retention {
			delete(c.entries, digest)
			path := filepath.Join(c.folder, e.cacheName)
			g.Go(func() error {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					log.Printf("compilecache: failed to remove evicted entry %s: %v", e.cacheName, err)
				}
				return nil
			})
			continue
		}
		path := filepath.Join(c.folder, e.cacheName)
		if _, statErr := os.Stat(path); statErr == nil {
			continue
		}
		g.Go(func() error {
			if err := os.WriteFile(path, []byte(e.key.SourceRepr), 0o644); err != nil {
				log.Printf("compilecache: failed to persist entry %s: %v", e.cacheName, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return writeMetadata(c.folder, c.entries)
}

// Executor returns an executor.Executor that routes Compile through this
// cache and delegates Prepare/Run to the underlying Executor, so a
// Reader can be pointed at the cache without knowing it exists.
func (c *Cache) Executor() executor.Executor {
	return cachingExecutor{cache: c}
}

type cachingExecutor struct {
	cache *Cache
}

func (e cachingExecutor) Compile(source string, opts executor.CompileOptions) (executor.Code, error) {
	return e.cache.Compile(source, opts)
}

func (e cachingExecutor) Prepare(init []executor.Code, ns executor.Namespace) (executor.Namespace, error) {
	return e.cache.executor.Prepare(init, ns)
}

func (e cachingExecutor) Run(program executor.Code, ns executor.Namespace) (interface{}, error) {
	return e.cache.executor.Run(program, ns)
}

func readMetadata(folder string) ([]metadataRecord, error) {
	path := filepath.Join(folder, "metadata.json")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []metadataRecord
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func writeMetadata(folder string, entries map[uint64]*entry) error {
	digests := make([]uint64, 0, len(entries))
	for d := range entries {
		digests = append(digests, d)
	}
	sort.Slice(digests, func(i, j int) bool { return digests[i] < digests[j] })

	records := make([]metadataRecord, 0, len(digests))
	for _, d := range digests {
		e := entries[d]
		records = append(records, metadataRecord{
			Digest:       d,
			CacheName:    e.cacheName,
			AccessTime:   e.accessTime,
			SourceRepr:   e.key.SourceRepr,
			FilenameRepr: e.key.FilenameRepr,
			MagicNumber:  e.key.MagicNumber,
			Mode:         e.key.Mode,
		})
	}

	content, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return xerrors.NewCacheError(folder, err)
	}
	path := filepath.Join(folder, "metadata.json")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return xerrors.NewCacheError(path, err)
	}
	return nil
}
