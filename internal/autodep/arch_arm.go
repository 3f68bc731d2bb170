//go:build linux && arm

package autodep

import "golang.org/x/sys/unix"

// armRegs wraps unix.PtraceRegs for the 32-bit ARM syscall ABI (spec §4.5:
// args in r0..r5 (Uregs[0..5]); syscall number in r7 (Uregs[7]); return
// value in r0 (Uregs[0])).
type armRegs struct{ r unix.PtraceRegs }

func (a *armRegs) SyscallNum() uint64 { return uint64(a.r.Uregs[7]) }

func (a *armRegs) Arg(i int) uint64 {
	if i < 0 || i >= 6 {
		return 0
	}
	return uint64(a.r.Uregs[i])
}

func (a *armRegs) RetVal() uint64     { return uint64(a.r.Uregs[0]) }
func (a *armRegs) SetRetVal(v uint64) { a.r.Uregs[0] = uint32(v) }

func readArchRegs(pid int) (archRegs, error) {
	var regs armRegs
	if err := unix.PtraceGetRegs(pid, &regs.r); err != nil {
		return nil, err
	}
	return &regs, nil
}

func writeArchRegs(pid int, ar archRegs) error {
	a := ar.(*armRegs)
	return unix.PtraceSetRegs(pid, &a.r)
}
