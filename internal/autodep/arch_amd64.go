//go:build linux && amd64

package autodep

import "golang.org/x/sys/unix"

// amd64Regs wraps unix.PtraceRegs for the x86_64 syscall ABI (spec §4.5:
// args in rdi,rsi,rdx,r10,r8,r9; syscall number in orig_rax; return value
// in rax).
type amd64Regs struct{ r unix.PtraceRegs }

func (a *amd64Regs) SyscallNum() uint64 { return a.r.Orig_rax }

func (a *amd64Regs) Arg(i int) uint64 {
	switch i {
	case 0:
		return a.r.Rdi
	case 1:
		return a.r.Rsi
	case 2:
		return a.r.Rdx
	case 3:
		return a.r.R10
	case 4:
		return a.r.R8
	case 5:
		return a.r.R9
	default:
		return 0
	}
}

func (a *amd64Regs) RetVal() uint64     { return a.r.Rax }
func (a *amd64Regs) SetRetVal(v uint64) { a.r.Rax = v }

func readArchRegs(pid int) (archRegs, error) {
	var regs amd64Regs
	if err := unix.PtraceGetRegs(pid, &regs.r); err != nil {
		return nil, err
	}
	return &regs, nil
}

func writeArchRegs(pid int, ar archRegs) error {
	a := ar.(*amd64Regs)
	return unix.PtraceSetRegs(pid, &a.r)
}
