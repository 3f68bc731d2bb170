package store

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"lmake/internal/logging"
)

// Durable is the crash-safe backing for the in-memory SimpleFile/VectorFile
// collections: LMAKE/store.db, one table per named collection, row-keyed by
// the stable Idx. Byte layout is explicitly out of scope for this spec
// (§1); gob is used because it asks nothing of callers beyond "the item
// type is serializable", matching the teacher's own durable-store
// dependency choice (internal/store/local_core.go opens sqlite3 with a
// single writer connection and WAL journaling) rather than inventing an mmap
// record format spec.md does not require.
type Durable struct {
	db *sql.DB
}

// OpenDurable opens (creating if needed) the sqlite database backing the
// persistent store under repoRoot/LMAKE/store.db.
func OpenDurable(repoRoot string) (*Durable, error) {
	dir := filepath.Join(repoRoot, "LMAKE")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create LMAKE dir: %w", err)
	}
	path := filepath.Join(dir, "store.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single writer thread per file, per spec §4.1's concurrency contract.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.Get(logging.CategoryStore).Warnf("store: %s: %v", pragma, err)
		}
	}
	return &Durable{db: db}, nil
}

// Close releases the underlying database handle.
func (d *Durable) Close() error { return d.db.Close() }

func (d *Durable) ensureTable(table string) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (idx INTEGER PRIMARY KEY, blob BLOB NOT NULL)`, table)
	_, err := d.db.Exec(q)
	return err
}

// SaveSlot persists one (table, idx) -> value mapping, overwriting any
// prior value. SimpleFile and VectorFile do not call it: their
// Assign/Emplace change memory only.
func SaveSlot[Item any](d *Durable, table string, idx Idx, v Item) error {
	if err := d.ensureTable(table); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("store: encode %s[%d]: %w", table, idx, err)
	}
	_, err := d.db.Exec(
		fmt.Sprintf(`INSERT INTO %q(idx, blob) VALUES(?, ?) ON CONFLICT(idx) DO UPDATE SET blob=excluded.blob`, table),
		idx, buf.Bytes(),
	)
	return err
}

// DeleteSlot removes a persisted slot, mirroring SimpleFile.Pop/VectorFile.Pop.
func (d *Durable) DeleteSlot(table string, idx Idx) error {
	if err := d.ensureTable(table); err != nil {
		return err
	}
	_, err := d.db.Exec(fmt.Sprintf(`DELETE FROM %q WHERE idx = ?`, table), idx)
	return err
}

// LoadTable returns every persisted slot of table in index order. No
// SimpleFile or VectorFile is rebuilt from it at startup.
func LoadTable[Item any](d *Durable, table string) ([]struct {
	Idx Idx
	Val Item
}, error) {
	if err := d.ensureTable(table); err != nil {
		return nil, err
	}
	rows, err := d.db.Query(fmt.Sprintf(`SELECT idx, blob FROM %q ORDER BY idx`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []struct {
		Idx Idx
		Val Item
	}
	for rows.Next() {
		var idx Idx
		var blob []byte
		if err := rows.Scan(&idx, &blob); err != nil {
			return nil, err
		}
		var v Item
		if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&v); err != nil {
			return nil, fmt.Errorf("store: decode %s[%d]: %w", table, idx, err)
		}
		out = append(out, struct {
			Idx Idx
			Val Item
		}{idx, v})
	}
	return out, rows.Err()
}
