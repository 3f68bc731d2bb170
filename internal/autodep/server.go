package autodep

import (
	"net"

	"lmake/internal/logging"
)

// Handler is the engine-side counterpart to Record: one method per
// procedure, invoked as each job's mngt traffic arrives. Deps/Targets/
// Unlinks are one-way; the rest return whatever the wire response carries.
type Handler interface {
	OnDeps(jobID uint64, deps []DepRecord)
	OnTargets(jobID uint64, targets []TargetRecord)
	OnUnlinks(jobID uint64, paths []string)
	OnChkDeps(jobID uint64, deps []DepRecord) bool
	OnDepVerbose(jobID uint64, deps []DepRecord) []DepStatus
	OnCriticalBarrier(jobID uint64)
	OnDecode(jobID uint64, file, ctx, code string) (string, bool)
	OnEncode(jobID uint64, file, ctx, val string, minLen int) (string, bool)
	OnHeartbeat(jobID uint64)
}

// Server accepts mngt-channel connections and dispatches each framed
// Request to h, replying where the procedure expects one.
type Server struct {
	ln net.Listener
	h  Handler
}

func NewServer(ln net.Listener, h Handler) *Server {
	return &Server{ln: ln, h: h}
}

// Serve accepts connections until ln is closed, handling each on its own
// goroutine; one connection serves one job's mngt traffic for its
// lifetime.
func (s *Server) Serve() error {
	log := logging.Get(logging.CategoryAutodep)
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go func() {
			if err := s.serveConn(conn); err != nil {
				log.Infof("mngt connection closed: %v", err)
			}
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) error {
	defer conn.Close()
	for {
		var req Request
		if err := ReadFramed(conn, &req); err != nil {
			return err
		}
		resp := Response{Envelope: req.Envelope}

		switch req.Proc {
		case ProcDeps:
			s.h.OnDeps(req.JobID, req.Deps)
			continue
		case ProcTargets:
			s.h.OnTargets(req.JobID, req.Targets)
			continue
		case ProcUnlinks:
			s.h.OnUnlinks(req.JobID, req.Unlinks)
			continue
		case ProcHeartbeat, ProcNone:
			s.h.OnHeartbeat(req.JobID)
			continue
		case ProcChkDeps:
			resp.Ok = s.h.OnChkDeps(req.JobID, req.Deps)
		case ProcDepVerbose:
			resp.PerDep = s.h.OnDepVerbose(req.JobID, req.Deps)
			resp.Ok = true
		case ProcCriticalBarrier:
			s.h.OnCriticalBarrier(req.JobID)
			resp.Ok = true
		case ProcDecode:
			val, ok := s.h.OnDecode(req.JobID, req.File, req.Ctx, req.CodecTxt)
			resp.CodeOrVal, resp.Ok = val, ok
		case ProcEncode:
			code, ok := s.h.OnEncode(req.JobID, req.File, req.Ctx, req.CodecTxt, req.MinLen)
			resp.CodeOrVal, resp.Ok = code, ok
		default:
			continue
		}

		if err := WriteFramed(conn, resp); err != nil {
			return err
		}
	}
}
