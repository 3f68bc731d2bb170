package autodep

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync/atomic"
)

// Proc is one mngt-channel procedure (spec §4.5 "Procedures on the mngt
// channel: None (heartbeat), Heartbeat, ChkDeps(deps) -> ok|err,
// DepVerbose(deps) -> per-dep status, LiveOut(txt) (no reply),
// Decode/Encode(file, ctx, txt[, min_len]) -> (code_or_val, crc, ok)").
type Proc uint8

const (
	ProcNone Proc = iota
	ProcHeartbeat
	ProcChkDeps
	ProcDepVerbose
	ProcLiveOut
	ProcDecode
	ProcEncode
	// ProcDeps/ProcTargets/ProcUnlinks carry the async Deps/Targets/Unlinks
	// notifications over the same mngt channel as the synchronous
	// procedures above; the spec's procedure table names only the
	// synchronous/LiveOut calls explicitly, but Deps/Targets/Unlinks need a
	// wire shape too and naturally belong alongside them rather than on a
	// fourth socket.
	ProcDeps
	ProcTargets
	ProcUnlinks
	ProcCriticalBarrier
)

// Channel distinguishes which of the three logical AF_UNIX sockets a
// message belongs to (spec §6 "three logical channels (start, mngt, end)
// multiplexed into three listening sockets").
type Channel uint8

const (
	ChannelStart Channel = iota
	ChannelMngt
	ChannelEnd
)

// Envelope carries a seq_id/job_id pair on every message so retried
// requests can be disambiguated (spec §6 "each message carries {seq_id,
// job_id} for disambiguation against retries").
type Envelope struct {
	SeqID uint64
	JobID uint64
}

// Request is one mngt-channel call from a job to the engine.
type Request struct {
	Envelope
	Proc Proc

	Deps      []DepRecord    `json:",omitempty"`
	Targets   []TargetRecord `json:",omitempty"`
	Unlinks   []string       `json:",omitempty"`
	LiveText  string         `json:",omitempty"`
	File, Ctx string         `json:",omitempty"`
	CodecTxt  string         `json:",omitempty"`
	MinLen    int            `json:",omitempty"`
	Op        CodecOp        `json:",omitempty"`
}

// Response answers a Request; async procedures (Deps, Targets, Unlinks,
// None/Heartbeat, LiveOut) get no Response at all.
type Response struct {
	Envelope
	Ok        bool
	PerDep    []DepStatus `json:",omitempty"`
	CodeOrVal string      `json:",omitempty"`
	Crc       string      `json:",omitempty"`
}

// WriteFramed writes v to w as a 4-byte big-endian length prefix followed
// by its JSON encoding, the same framing internal/audit uses for its
// channel — the protocols differ in payload, not in the framing idiom.
func WriteFramed(w io.Writer, v any) error {
	body, err := json.Marshal(v)
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

// ReadFramed reads one length-prefixed JSON value from r into v.
func ReadFramed(r io.Reader, v any) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// seqCounter hands out process-unique seq_ids for outgoing requests.
var seqCounter uint64

func nextSeqID() uint64 { return atomic.AddUint64(&seqCounter, 1) }

// Dial connects to one of the three AF_UNIX sockets the engine listens
// on for a given job (spec §6). sockPath is typically derived from
// LMAKE_AUTODEP_ENV's service/fast-mail fields (internal/jobenv).
func Dial(sockPath string) (net.Conn, error) {
	return net.Dial("unix", sockPath)
}

// Listen opens the AF_UNIX socket the engine accepts job connections on.
func Listen(sockPath string) (net.Listener, error) {
	return net.Listen("unix", sockPath)
}

// Client is a thin Record implementation that relays every call over the
// mngt channel (the only channel with synchronous replies); Start/End
// traffic (JobStart/JobEnd) is handled separately in internal/backend.
type Client struct {
	conn  net.Conn
	jobID uint64
}

func NewClient(conn net.Conn, jobID uint64) *Client {
	return &Client{conn: conn, jobID: jobID}
}

func (c *Client) call(req Request) (Response, error) {
	req.Envelope = Envelope{SeqID: nextSeqID(), JobID: c.jobID}
	if err := WriteFramed(c.conn, req); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := ReadFramed(c.conn, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (c *Client) send(req Request) error {
	req.Envelope = Envelope{SeqID: nextSeqID(), JobID: c.jobID}
	return WriteFramed(c.conn, req)
}

func (c *Client) Deps(deps []DepRecord) { _ = c.send(Request{Proc: ProcDeps, Deps: deps}) }

func (c *Client) Targets(targets []TargetRecord) {
	_ = c.send(Request{Proc: ProcTargets, Targets: targets})
}

func (c *Client) Unlinks(paths []string) { _ = c.send(Request{Proc: ProcUnlinks, Unlinks: paths}) }

func (c *Client) ChkDeps(deps []DepRecord) error {
	resp, err := c.call(Request{Proc: ProcChkDeps, Deps: deps})
	if err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("chk_deps: a dependency is stale")
	}
	return nil
}

func (c *Client) DepVerbose(deps []DepRecord) []DepStatus {
	resp, err := c.call(Request{Proc: ProcDepVerbose, Deps: deps})
	if err != nil {
		out := make([]DepStatus, len(deps))
		for i := range out {
			out[i] = DepStatusUnknown
		}
		return out
	}
	return resp.PerDep
}

func (c *Client) CriticalBarrier() { _, _ = c.call(Request{Proc: ProcCriticalBarrier}) }

func (c *Client) Decode(file, ctx, code string) (string, bool) {
	resp, err := c.call(Request{Proc: ProcDecode, File: file, Ctx: ctx, CodecTxt: code, Op: CodecDecode})
	if err != nil {
		return "", false
	}
	return resp.CodeOrVal, resp.Ok
}

func (c *Client) Encode(file, ctx, val string, minLen int) (string, bool) {
	resp, err := c.call(Request{Proc: ProcEncode, File: file, Ctx: ctx, CodecTxt: val, MinLen: minLen, Op: CodecEncode})
	if err != nil {
		return "", false
	}
	return resp.CodeOrVal, resp.Ok
}

var _ Record = (*Client)(nil)
