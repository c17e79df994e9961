// Package cache implements the incremental scan cache: a keyed on-disk
// store, one row per relpath, addressed by --cache-file. Fingerprints
// decide reuse; stale or missing rows force a re-parse rather than ever
// failing the run.
package cache

import (
	"crypto/sha1"
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// HashMode selects how file fingerprints are computed.
type HashMode string

const (
	HashStat HashMode = "stat"
	HashSHA1 HashMode = "sha1"
)

// Cache wraps a SQLite database of cache_units rows. The payload stored
// per relpath is an opaque JSON blob — this package has no notion of what
// a scan result looks like, so callers (the scanner package) own encoding
// and decoding their own record shape, keeping this package free of a
// dependency back on the scanner.
type Cache struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the SQLite cache file at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	c := &Cache{db: db, path: path}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	_, err := c.db.Exec(`
	CREATE TABLE IF NOT EXISTS cache_units (
		relpath     TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		hash_mode   TEXT NOT NULL,
		payload     TEXT NOT NULL
	);`)
	return err
}

// Close closes the underlying database connection. A failure here is
// never surfaced to the caller's exit code — a cache that cannot be
// written back never fails the run.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Fingerprint computes the fingerprint for path under the given mode.
// Any I/O failure degrades to a fingerprint that can never match a cached
// entry, forcing re-parse rather than propagating an error.
func Fingerprint(path string, mode HashMode) string {
	switch mode {
	case HashSHA1:
		f, err := os.Open(path)
		if err != nil {
			return "0"
		}
		defer f.Close()
		h := sha1.New()
		buf := make([]byte, 8192)
		for {
			n, rerr := f.Read(buf)
			if n > 0 {
				h.Write(buf[:n])
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return "0"
			}
		}
		return fmt.Sprintf("%x", h.Sum(nil))
	default:
		info, err := os.Stat(path)
		if err != nil {
			return "0:0"
		}
		return fmt.Sprintf("%d:%d", info.ModTime().Unix(), info.Size())
	}
}

// Lookup returns the raw cached payload for relpath if its stored
// fingerprint matches fp and the stored hash mode is compatible with
// mode. A legacy row with an empty hash_mode is treated as "stat" and is
// only honored when the current mode is also stat.
func (c *Cache) Lookup(relpath, fp string, mode HashMode) ([]byte, bool) {
	var storedFP, storedMode, payload string
	err := c.db.QueryRow(`SELECT fingerprint, hash_mode, payload FROM cache_units WHERE relpath = ?`, relpath).
		Scan(&storedFP, &storedMode, &payload)
	if err != nil {
		return nil, false
	}
	if storedFP != fp {
		return nil, false
	}
	if storedMode == "" {
		storedMode = string(HashStat)
	}
	if storedMode != string(mode) {
		return nil, false
	}
	return []byte(payload), true
}

// Store writes (or overwrites) relpath's cache_units row with an
// already-encoded payload. Write failures are swallowed — a cache-write
// failure never fails the run.
func (c *Cache) Store(relpath, fp string, mode HashMode, payload []byte) {
	_, _ = c.db.Exec(
		`INSERT INTO cache_units (relpath, fingerprint, hash_mode, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(relpath) DO UPDATE SET fingerprint=excluded.fingerprint, hash_mode=excluded.hash_mode, payload=excluded.payload`,
		relpath, fp, string(mode), string(payload),
	)
}

// Prune removes every cache_units row whose relpath is not in live, and
// returns the number of rows removed.
func (c *Cache) Prune(live map[string]bool) (int, error) {
	rows, err := c.db.Query(`SELECT relpath FROM cache_units`)
	if err != nil {
		return 0, nil // cache-read failure: treated as empty prior cache
	}
	var stale []string
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			continue
		}
		if !live[rel] {
			stale = append(stale, rel)
		}
	}
	rows.Close()

	for _, rel := range stale {
		_, _ = c.db.Exec(`DELETE FROM cache_units WHERE relpath = ?`, rel)
	}
	return len(stale), nil
}

// All returns every surviving cache_units row's raw payload, keyed by
// relpath, for the report's cache_units field. A read failure degrades to
// an empty map rather than propagating, like every other cache read here.
func (c *Cache) All() map[string][]byte {
	out := map[string][]byte{}
	rows, err := c.db.Query(`SELECT relpath, payload FROM cache_units`)
	if err != nil {
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var rel, payload string
		if err := rows.Scan(&rel, &payload); err != nil {
			continue
		}
		out[rel] = []byte(payload)
	}
	return out
}
