//go:build linux && arm64

package autodep

import "golang.org/x/sys/unix"

// arm64Regs wraps unix.PtraceRegs for the aarch64 syscall ABI (spec §4.5:
// args in x0..x5; syscall number in x8 (Regs[8]); return value in x0
// (Regs[0])).
type arm64Regs struct{ r unix.PtraceRegs }

func (a *arm64Regs) SyscallNum() uint64 { return a.r.Regs[8] }

func (a *arm64Regs) Arg(i int) uint64 {
	if i < 0 || i >= 6 {
		return 0
	}
	return a.r.Regs[i]
}

func (a *arm64Regs) RetVal() uint64     { return a.r.Regs[0] }
func (a *arm64Regs) SetRetVal(v uint64) { a.r.Regs[0] = v }

func readArchRegs(pid int) (archRegs, error) {
	var regs arm64Regs
	if err := unix.PtraceGetRegs(pid, &regs.r); err != nil {
		return nil, err
	}
	return &regs, nil
}

func writeArchRegs(pid int, ar archRegs) error {
	a := ar.(*arm64Regs)
	return unix.PtraceSetRegs(pid, &a.r)
}
