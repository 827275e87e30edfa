package module

import "github.com/Mu-L/breakpad/postfix"

// FindCallerRegs recovers the caller's registers from a Windows-style
// (STACK WIN) unwind descriptor: it interprets w.ProgramString when one was
// recorded, or falls back to the standard EBP-chain (or frame-pointer-less)
// convention otherwise. callee is the current frame's register snapshot;
// mem supplies the memory reads the unwind may require.
func (w WindowsFrameInfo) FindCallerRegs(width postfix.Width, callee postfix.RegisterMap, mem postfix.Memory) (postfix.RegisterMap, bool) {
	return postfix.FindCallerRegs(width, postfix.FrameInfo{
		HasProgramString:     w.HasProgramString,
		ProgramString:        w.ProgramString,
		AllocatesBasePointer: w.AllocatesBasePointer,
		ParamSize:            w.ParamSize,
		SavedRegSize:         w.SavedRegSize,
		LocalSize:            w.LocalSize,
	}, callee, mem)
}
