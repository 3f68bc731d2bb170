//go:build linux && 386

package autodep

import "golang.org/x/sys/unix"

// i386Regs wraps unix.PtraceRegs for the i386 syscall ABI (spec §4.5:
// args in ebx,ecx,edx,esi,edi,ebp; syscall number in orig_eax; return
// value in eax).
type i386Regs struct{ r unix.PtraceRegs }

func (a *i386Regs) SyscallNum() uint64 { return uint64(a.r.Orig_eax) }

func (a *i386Regs) Arg(i int) uint64 {
	switch i {
	case 0:
		return uint64(a.r.Ebx)
	case 1:
		return uint64(a.r.Ecx)
	case 2:
		return uint64(a.r.Edx)
	case 3:
		return uint64(a.r.Esi)
	case 4:
		return uint64(a.r.Edi)
	case 5:
		return uint64(a.r.Ebp)
	default:
		return 0
	}
}

func (a *i386Regs) RetVal() uint64     { return uint64(a.r.Eax) }
func (a *i386Regs) SetRetVal(v uint64) { a.r.Eax = int32(v) }

func readArchRegs(pid int) (archRegs, error) {
	var regs i386Regs
	if err := unix.PtraceGetRegs(pid, &regs.r); err != nil {
		return nil, err
	}
	return &regs, nil
}

func writeArchRegs(pid int, ar archRegs) error {
	a := ar.(*i386Regs)
	return unix.PtraceSetRegs(pid, &a.r)
}
