// Package codec implements the plain-text codec association file (spec §6):
// a durable, human-editable mapping from a short code to a (context, value)
// pair, used when a dependency's real content is too large or volatile to
// keep as a target but still needs a stable name to depend on.
package codec

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Entry is one line of an association file: code decode-maps to (Ctx, Val).
type Entry struct {
	Ctx  string
	Code string
	Val  string
}

// Table is an in-memory association file, keyed by (Ctx, Code).
type Table struct {
	entries map[string]Entry // key: Ctx + "\x00" + Code
}

func New() *Table { return &Table{entries: make(map[string]Entry)} }

func key(ctx, code string) string { return ctx + "\x00" + code }

// Decode returns the value associated with (ctx, code).
func (t *Table) Decode(ctx, code string) (string, bool) {
	e, ok := t.entries[key(ctx, code)]
	return e.Val, ok
}

// Encode returns the code associated with (ctx, val), scanning linearly;
// association files are small enough in practice (spec §6) that a reverse
// index is not worth the bookkeeping.
func (t *Table) Encode(ctx, val string) (string, bool) {
	for _, e := range t.entries {
		if e.Ctx == ctx && e.Val == val {
			return e.Code, true
		}
	}
	return "", false
}

// Put inserts or replaces the mapping for (ctx, code).
func (t *Table) Put(ctx, code, val string) {
	t.entries[key(ctx, code)] = Entry{Ctx: ctx, Code: code, Val: val}
}

// Parse reads the " <ctx> <code> <val>\n" line format from r (spec §6).
// Blank lines are skipped; any other line that does not split into exactly
// three fields makes Parse fail with an error.
func Parse(r io.Reader) (*Table, error) {
	t := New()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("codec: malformed line %q", line)
		}
		t.Put(fields[0], fields[1], fields[2])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// Write serializes the table in canonical order: sorted by (Ctx, Code), one
// " <ctx> <code> <val>\n" line per entry (spec §6 "canonical sort,
// reformat-on-read" — every write normalizes ordering and spacing so the
// file is stable under repeated round-trips regardless of insertion order).
func (t *Table) Write(w io.Writer) error {
	entries := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Ctx != entries[j].Ctx {
			return entries[i].Ctx < entries[j].Ctx
		}
		return entries[i].Code < entries[j].Code
	})
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, " %s %s %s\n", e.Ctx, e.Code, e.Val); err != nil {
			return err
		}
	}
	return bw.Flush()
}
