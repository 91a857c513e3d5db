package fetchcache

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Stats describes one cache store for a wrapped function.
type Stats struct {
	Name           string `json:"name"`
	Directory      string `json:"directory"`
	SizeLimitBytes int64  `json:"size_limit_bytes"`
	Bytes          int64  `json:"bytes"`
	Count          int64  `json:"count"`
	Version        string `json:"version"`
	Tag            string `json:"tag,omitempty"`
}

// exportLine is one record of a line-delimited export file.
type exportLine struct {
	K string          `json:"k"`
	V json.RawMessage `json:"v"`
}

// Stats reports entry count, byte volume, the effective version and the
// resolved directory. dirOverride, when non-empty, bypasses directory
// resolution the same way a per-call override does.
func (c *Cached[T]) Stats(ctx context.Context, dirOverride string) (Stats, error) {
	dir := c.resolveDir(dirOverride)
	store, err := c.env.Store(ctx, dir, c.cfg.SizeLimitBytes)
	if err != nil {
		return Stats{}, err
	}
	return storeStats(ctx, store, c.cfg.Name, c.version, c.cfg.Tag)
}

// Clear destroys every entry in the resolved store. It refuses to run
// without the explicit confirmation flag.
func (c *Cached[T]) Clear(ctx context.Context, confirm bool, dirOverride string) error {
	if !confirm {
		return ErrConfirmRequired
	}
	store, err := c.env.Store(ctx, c.resolveDir(dirOverride), c.cfg.SizeLimitBytes)
	if err != nil {
		return err
	}
	return store.Clear(ctx)
}

// Export writes every entry of the resolved store to path as line-delimited
// JSON, one {"k":…,"v":…} record per line. Values that are not valid JSON
// are exported as their string representation.
func (c *Cached[T]) Export(ctx context.Context, path, dirOverride string) error {
	store, err := c.env.Store(ctx, c.resolveDir(dirOverride), c.cfg.SizeLimitBytes)
	if err != nil {
		return err
	}
	return ExportStore(ctx, store, path)
}

// Import replays an exported file into the resolved store, silently skipping
// malformed lines. Imported entries never expire.
func (c *Cached[T]) Import(ctx context.Context, path, dirOverride string) error {
	store, err := c.env.Store(ctx, c.resolveDir(dirOverride), c.cfg.SizeLimitBytes)
	if err != nil {
		return err
	}
	return ImportStore(ctx, store, path)
}

// storeStats gathers stats for any store; the CLI and HTTP surfaces reuse it
// for stores addressed by name rather than through a wrapper.
func storeStats(ctx context.Context, store *Store, name, version, tag string) (Stats, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	volume, err := store.Volume(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Name:           name,
		Directory:      store.Directory(),
		SizeLimitBytes: store.SizeLimit(),
		Bytes:          volume,
		Count:          count,
		Version:        version,
		Tag:            tag,
	}, nil
}

// StatsFor reports stats for a named cache directory without going through a
// wrapped function.
func (e *Env) StatsFor(ctx context.Context, name, dirOverride string) (Stats, error) {
	dir := dirOverride
	if dir == "" {
		dir = e.DirFor(name)
	}
	store, err := e.Store(ctx, dir, 0)
	if err != nil {
		return Stats{}, err
	}
	return storeStats(ctx, store, name, "", "")
}

// ExportStore serializes every entry of a store into a line-delimited file.
func ExportStore(ctx context.Context, store *Store, path string) error {
	entries, err := store.Entries(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close() // nolint:errcheck // flushed and closed explicitly below

	w := bufio.NewWriter(f)
	for _, entry := range entries {
		line := exportLine{K: entry.Key}
		if json.Valid([]byte(entry.Value)) {
			line.V = json.RawMessage(entry.Value)
		} else {
			repr, err := json.Marshal(entry.Value)
			if err != nil {
				continue
			}
			line.V = repr
		}
		raw, err := json.Marshal(line)
		if err != nil {
			continue
		}
		if _, err := w.Write(append(raw, '\n')); err != nil {
			return fmt.Errorf("write export file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush export file: %w", err)
	}
	return f.Close()
}

// ImportStore replays an export file into a store, skipping lines that do
// not parse.
func ImportStore(ctx context.Context, store *Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close() // nolint:errcheck // read-only handle

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var line exportLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.K == "" || len(line.V) == 0 {
			continue
		}
		if err := store.Set(ctx, line.K, string(line.V), 0); err != nil {
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	return nil
}
