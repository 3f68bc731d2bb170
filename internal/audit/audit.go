// Package audit implements the Req layer's line-oriented reporting protocol
// (spec §4.8): framed Stdout/Stderr/File/Status messages sent best-effort to
// a client channel, mirrored durably to a per-day rotated JSONL log.
//
// Generalized from the teacher's internal/logging/audit.go request-scoped
// audit trail (AuditEventType, structured JSON entries, file-per-category)
// onto the build daemon's job-output reporting: here the "category" is a Req
// rather than an agent session, and entries are framed length-prefixed
// messages rather than free-form log lines.
package audit

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Kind distinguishes one of the four audit message types (spec §4.8).
type Kind uint8

const (
	KindStdout Kind = iota
	KindStderr
	KindFile
	KindStatus
)

// Message is one framed audit-channel entry.
type Message struct {
	Kind Kind
	Line string // Stdout/Stderr line, File path, or Status text
	Ok   bool   // meaningful only for KindStatus
}

// WriteFramed writes msg to w as a 4-byte big-endian length prefix followed
// by its JSON encoding (spec §4.8 "framed by length prefix").
func WriteFramed(w io.Writer, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFramed reads one length-prefixed Message from r.
func ReadFramed(r io.Reader) (Message, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// nowFunc is overridable in tests; production code always uses time.Now.
var nowFunc = time.Now

// Channel is one Req's audit reporting surface: a best-effort client pipe
// plus a durable parallel log, with start_delay-deferred announcement of
// unremarkable jobs (spec §4.8).
type Channel struct {
	mu         sync.Mutex
	client     io.Writer // nil once the client pipe is considered broken
	log        *dayLog
	startDelay time.Duration

	pending map[string]*deferredJob // jobName -> pending announcement
}

type deferredJob struct {
	timer    *time.Timer
	messages []Message
}

// NewChannel returns a Channel reporting to client (best-effort; a write
// error permanently disables it, per spec §4.8 "a broken audit_fd is
// tolerated") and durably logging under root (see dayLog).
func NewChannel(client io.Writer, root string, startDelay time.Duration) (*Channel, error) {
	dl, err := openDayLog(root)
	if err != nil {
		return nil, err
	}
	return &Channel{
		client:     client,
		log:        dl,
		startDelay: startDelay,
		pending:    make(map[string]*deferredJob),
	}, nil
}

// Report logs msg for jobName durably and, when startDelay is positive,
// defers its client announcement: the first message of a job starts a
// startDelay timer, and later messages join that job's pending batch until
// the timer fires (or Unremarkable drops the batch). With startDelay <= 0
// msg is sent to the client at once (spec §4.8 "deferred by start_delay:
// if a job completes within that delay and is unremarkable, it is never
// announced").
func (c *Channel) Report(jobName string, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.log.write(jobName, msg); err != nil {
		// the durable log is best-effort-resilient too: a write failure here
		// must not take down job reporting.
		_ = err
	}

	if c.startDelay <= 0 {
		c.send(msg)
		return
	}

	dj, ok := c.pending[jobName]
	if !ok {
		dj = &deferredJob{}
		c.pending[jobName] = dj
		dj.timer = time.AfterFunc(c.startDelay, func() { c.flush(jobName) })
	}
	dj.messages = append(dj.messages, msg)
}

// Unremarkable drops any still-pending announcement for jobName: called
// when a job finishes within start_delay with nothing worth reporting.
func (c *Channel) Unremarkable(jobName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dj, ok := c.pending[jobName]; ok {
		dj.timer.Stop()
		delete(c.pending, jobName)
	}
}

func (c *Channel) flush(jobName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dj, ok := c.pending[jobName]
	if !ok {
		return
	}
	delete(c.pending, jobName)
	for _, m := range dj.messages {
		c.send(m)
	}
}

func (c *Channel) send(msg Message) {
	if c.client == nil {
		return
	}
	if err := WriteFramed(c.client, msg); err != nil {
		c.client = nil
	}
}

// Close flushes any pending announcements immediately and closes the
// durable log.
func (c *Channel) Close() error {
	c.mu.Lock()
	for name, dj := range c.pending {
		dj.timer.Stop()
		for _, m := range dj.messages {
			c.send(m)
		}
		delete(c.pending, name)
	}
	c.mu.Unlock()
	return c.log.close()
}

// dayLog is the durable parallel log: one append-only JSONL file per
// LMAKE/outputs/YYYY-MM-DD/, with LMAKE/last_output kept as a symlink to the
// current day's directory (spec §6).
type dayLog struct {
	mu   sync.Mutex
	root string
	day  string
	f    *os.File
	w    *bufio.Writer
}

type logEntry struct {
	Time time.Time `json:"time"`
	Job  string    `json:"job"`
	Kind Kind      `json:"kind"`
	Line string    `json:"line"`
	Ok   bool      `json:"ok,omitempty"`
}

func openDayLog(root string) (*dayLog, error) {
	dl := &dayLog{root: root}
	if err := dl.rollIfNeeded(); err != nil {
		return nil, err
	}
	return dl, nil
}

func (d *dayLog) rollIfNeeded() error {
	day := nowFunc().Format("2006-01-02")
	if day == d.day && d.f != nil {
		return nil
	}
	if d.f != nil {
		_ = d.w.Flush()
		_ = d.f.Close()
	}
	dir := filepath.Join(d.root, "outputs", day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, "audit.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	d.f = f
	d.w = bufio.NewWriter(f)
	d.day = day

	link := filepath.Join(d.root, "last_output")
	_ = os.Remove(link)
	_ = os.Symlink(dir, link)
	return nil
}

func (d *dayLog) write(job string, msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rollIfNeeded(); err != nil {
		return err
	}
	entry := logEntry{Time: nowFunc(), Job: job, Kind: msg.Kind, Line: msg.Line, Ok: msg.Ok}
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := d.w.Write(body); err != nil {
		return err
	}
	if err := d.w.WriteByte('\n'); err != nil {
		return err
	}
	return d.w.Flush()
}

func (d *dayLog) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	if err := d.w.Flush(); err != nil {
		return err
	}
	return d.f.Close()
}
