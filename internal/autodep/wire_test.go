package autodep

import (
	"net"
	"testing"
	"time"
)

type fakeHandler struct {
	deps       []DepRecord
	chkDepsOk  bool
	codecTable map[string]string
}

func (h *fakeHandler) OnDeps(jobID uint64, deps []DepRecord) { h.deps = append(h.deps, deps...) }
func (h *fakeHandler) OnTargets(uint64, []TargetRecord)      {}
func (h *fakeHandler) OnUnlinks(uint64, []string)            {}
func (h *fakeHandler) OnChkDeps(uint64, []DepRecord) bool    { return h.chkDepsOk }
func (h *fakeHandler) OnCriticalBarrier(uint64)              {}
func (h *fakeHandler) OnHeartbeat(uint64)                    {}
func (h *fakeHandler) OnDepVerbose(_ uint64, deps []DepRecord) []DepStatus {
	out := make([]DepStatus, len(deps))
	for i := range out {
		out[i] = DepStatusOk
	}
	return out
}
func (h *fakeHandler) OnDecode(_ uint64, file, ctx, code string) (string, bool) {
	v, ok := h.codecTable[ctx+"/"+code]
	return v, ok
}
func (h *fakeHandler) OnEncode(_ uint64, file, ctx, val string, minLen int) (string, bool) {
	return "c0", true
}

func pipeConns(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	return a, b
}

func TestClientServerChkDeps(t *testing.T) {
	clientConn, serverConn := pipeConns(t)
	h := &fakeHandler{chkDepsOk: true}
	srv := &Server{h: h}
	go srv.serveConn(serverConn)

	c := NewClient(clientConn, 42)
	if err := c.ChkDeps([]DepRecord{{File: "a.txt", Access: AccessReg}}); err != nil {
		t.Fatalf("ChkDeps: %v", err)
	}
	if len(h.deps) != 0 {
		t.Fatal("ChkDeps must not have gone through OnDeps")
	}
}

func TestClientServerChkDepsFailure(t *testing.T) {
	clientConn, serverConn := pipeConns(t)
	h := &fakeHandler{chkDepsOk: false}
	srv := &Server{h: h}
	go srv.serveConn(serverConn)

	c := NewClient(clientConn, 1)
	if err := c.ChkDeps([]DepRecord{{File: "stale.txt"}}); err == nil {
		t.Fatal("expected ChkDeps to report a stale dep")
	}
}

func TestClientServerDecodeRoundTrip(t *testing.T) {
	clientConn, serverConn := pipeConns(t)
	h := &fakeHandler{codecTable: map[string]string{"ctx1/c0": "hello"}}
	srv := &Server{h: h}
	go srv.serveConn(serverConn)

	c := NewClient(clientConn, 7)
	val, ok := c.Decode("f.txt", "ctx1", "c0")
	if !ok || val != "hello" {
		t.Fatalf("Decode = (%q, %v), want (hello, true)", val, ok)
	}
}

func TestClientAsyncDepsDoesNotBlock(t *testing.T) {
	clientConn, serverConn := pipeConns(t)
	h := &fakeHandler{}
	srv := &Server{h: h}
	go srv.serveConn(serverConn)

	c := NewClient(clientConn, 3)
	done := make(chan struct{})
	go func() {
		c.Deps([]DepRecord{{File: "x"}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async Deps call blocked")
	}
}

func TestWriteReadFramedRoundTrip(t *testing.T) {
	clientConn, serverConn := pipeConns(t)
	go func() {
		_ = WriteFramed(clientConn, Request{Proc: ProcHeartbeat, Envelope: Envelope{SeqID: 1, JobID: 2}})
	}()
	var req Request
	if err := ReadFramed(serverConn, &req); err != nil {
		t.Fatalf("ReadFramed: %v", err)
	}
	if req.Proc != ProcHeartbeat || req.SeqID != 1 || req.JobID != 2 {
		t.Fatalf("unexpected request: %+v", req)
	}
}
