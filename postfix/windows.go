package postfix

// FrameInfo is the subset of a STACK WIN record's fields the Windows
// caller-register recovery needs: either a program string to interpret, or
// the frame geometry (param/saved-reg/local sizes) and allocates-base-
// pointer flag to apply the standard frame-pointer (or frame-pointer-less)
// unwind convention when no program string was supplied.
type FrameInfo struct {
	HasProgramString     bool
	ProgramString        string
	AllocatesBasePointer bool
	ParamSize            uint32
	SavedRegSize         uint32
	LocalSize            uint32
}

// FindCallerRegs recovers the caller's registers from callee, given mem and
// info. When info carries a program string, it is interpreted by a
// Machine in assignment mode with the frame's geometry exposed as the
// pseudo-registers real Breakpad program strings reference
// (.cbParams, .cbSavedRegs, .cbLocals). Otherwise the standard x86 Windows
// unwind convention applies: walk the EBP chain when the frame established
// one, or compute the caller's ESP/EIP directly from the frame's saved/local
// sizes when it did not.
//
// With a program string, the result is exactly the set of names the program
// assigned; no particular register is required to be among them. Without
// one, the result always contains ".ra" (the return address) and the
// caller's "eip", "esp" and "ebp". Either way it is discarded entirely
// (ok=false) on any failure.
func FindCallerRegs(width Width, info FrameInfo, callee RegisterMap, mem Memory) (RegisterMap, bool) {
	if info.HasProgramString {
		ctx := Context{
			"cbParams":    uint64(info.ParamSize),
			"cbSavedRegs": uint64(info.SavedRegSize),
			"cbLocals":    uint64(info.LocalSize),
		}
		m := NewMachine(width, callee, ctx, mem, true)
		out, err := m.Run(info.ProgramString)
		if err != nil {
			return nil, false
		}
		return out, true
	}
	return findCallerRegsNoProgramString(info, callee, mem)
}

func findCallerRegsNoProgramString(info FrameInfo, callee RegisterMap, mem Memory) (RegisterMap, bool) {
	esp, ok := callee["esp"]
	if !ok {
		return nil, false
	}
	ebp, ok := callee["ebp"]
	if !ok {
		return nil, false
	}

	if info.AllocatesBasePointer {
		callerEBP, ok := mem.ReadWord(ebp)
		if !ok {
			return nil, false
		}
		callerEIP, ok := mem.ReadWord(ebp + 4)
		if !ok {
			return nil, false
		}
		return RegisterMap{
			".ra": callerEIP,
			"eip": callerEIP,
			"esp": ebp + 8,
			"ebp": callerEBP,
		}, true
	}

	raAddr := esp + uint64(info.LocalSize) + uint64(info.SavedRegSize)
	callerEIP, ok := mem.ReadWord(raAddr)
	if !ok {
		return nil, false
	}
	return RegisterMap{
		".ra": callerEIP,
		"eip": callerEIP,
		"esp": raAddr + 4,
		"ebp": ebp,
	}, true
}
