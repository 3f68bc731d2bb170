//go:build linux && (amd64 || arm64 || 386 || arm)

package autodep

import (
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"lmake/internal/logging"
)

// syscall numbers the tracer cares about, x86_64/arm64 numbering (the
// values overlap with generic numbering on most Linux syscall ABIs the
// tracer targets; archRegs.SyscallNum already normalizes the ABI-specific
// register, this table normalizes the ABI-specific numbering for the
// handful of syscalls that drive dependency discovery).
const (
	sysOpen   = 2
	sysOpenat = 257
	sysStat   = 4
	sysLstat  = 6
	sysUnlink = 87
	sysRename = 82
)

// Tracer execs a job under ptrace and synthesizes the Record stream a
// preload shim would otherwise report, by decoding syscall entry/exit pairs
// (spec §4.5 "a tracer parent process stops the tracee on each syscall
// entry, reads its argument registers ..., and synthesizes the same record
// stream").
type Tracer struct {
	opts Options
	rec  Record

	mu      sync.Mutex
	pending map[int]bool // pid -> awaiting the matching syscall-exit stop
}

func NewTracer(opts Options, rec Record) *Tracer {
	return &Tracer{opts: opts, rec: rec, pending: make(map[int]bool)}
}

// Run execs argv[0] with argv[1:] under ptrace and blocks until it exits,
// relaying every observed access to t.rec as it happens.
func (t *Tracer) Run(argv []string) (exitCode int, err error) {
	log := logging.Get(logging.CategoryAutodep)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
	if err := cmd.Start(); err != nil {
		return -1, err
	}
	pid := cmd.Process.Pid

	var ws syscall.WaitStatus
	if _, err := syscall.Wait4(pid, &ws, 0, nil); err != nil {
		return -1, err
	}
	// Options that keep clone/fork/exec children traced too, so the whole
	// job subtree is observed, not just its first process.
	_ = unix.PtraceSetOptions(pid, unix.PTRACE_O_TRACESYSGOOD|unix.PTRACE_O_TRACECLONE|unix.PTRACE_O_TRACEFORK|unix.PTRACE_O_TRACEVFORK)

	for {
		if err := unix.PtraceSyscall(pid, 0); err != nil {
			return -1, err
		}
		if _, err := syscall.Wait4(pid, &ws, 0, nil); err != nil {
			return -1, err
		}
		if ws.Exited() {
			return ws.ExitStatus(), nil
		}
		if ws.Signaled() {
			log.Infof("traced job killed by signal %v", ws.Signal())
			return -1, nil
		}
		if !ws.Stopped() {
			continue
		}

		regs, err := readArchRegs(pid)
		if err != nil {
			continue // process may have exited between the stop and the read
		}

		t.mu.Lock()
		entering := !t.pending[pid]
		t.pending[pid] = entering
		t.mu.Unlock()

		if entering {
			t.onSyscallEntry(pid, regs)
		} else {
			t.onSyscallExit(pid, regs)
		}
	}
}

// onSyscallEntry decides, from the syscall number and argument registers,
// whether this access is dependency-relevant; the path argument (always
// the first pointer-valued register for the syscalls tracked here) is read
// from the tracee's address space via PtracePeekData.
func (t *Tracer) onSyscallEntry(pid int, regs archRegs) {
	switch regs.SyscallNum() {
	case sysOpen, sysStat, sysLstat:
		path := t.readCString(pid, uintptr(regs.Arg(0)))
		if path == "" {
			return
		}
		access := AccessReg
		if regs.SyscallNum() == sysStat || regs.SyscallNum() == sysLstat {
			access = AccessStat
		}
		if regs.SyscallNum() == sysLstat && t.opts.LinkSupport != LinkNone {
			access = AccessLnk
		}
		t.rec.Deps([]DepRecord{{File: path, Access: access}})
	case sysOpenat:
		path := t.readCString(pid, uintptr(regs.Arg(1)))
		if path == "" {
			return
		}
		t.rec.Deps([]DepRecord{{File: path, Access: AccessReg}})
	case sysUnlink:
		path := t.readCString(pid, uintptr(regs.Arg(0)))
		if path != "" {
			t.rec.Unlinks([]string{path})
		}
	case sysRename:
		oldPath := t.readCString(pid, uintptr(regs.Arg(0)))
		newPath := t.readCString(pid, uintptr(regs.Arg(1)))
		if oldPath != "" {
			t.rec.Unlinks([]string{oldPath})
		}
		if newPath != "" {
			t.rec.Targets([]TargetRecord{{File: newPath}})
		}
	}
}

// onSyscallExit reads the syscall's return value and records nothing.
// Every access is reported at entry; open()/openat() are always reported as
// deps, whatever their flags, so a file the job creates or writes through
// open() is never reported as a target.
func (t *Tracer) onSyscallExit(pid int, regs archRegs) {
	// The entry handler already reported the access optimistically;
	// open()'s exit is only used to detect outright failure, in which case
	// nothing further is recorded for this syscall.
	ret := int64(regs.RetVal())
	if ret < 0 {
		return
	}
}

// readCString reads a NUL-terminated string from the tracee's memory at
// addr, one word at a time via PTRACE_PEEKDATA.
func (t *Tracer) readCString(pid int, addr uintptr) string {
	if addr == 0 {
		return ""
	}
	var out []byte
	buf := make([]byte, 8)
	for len(out) < 4096 {
		n, err := unix.PtracePeekData(pid, addr+uintptr(len(out)), buf)
		if err != nil || n == 0 {
			break
		}
		for _, b := range buf[:n] {
			if b == 0 {
				return string(out)
			}
			out = append(out, b)
		}
	}
	return string(out)
}
