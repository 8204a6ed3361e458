// Package regalloc defines the machine-location model (VLoc in spec.md
// terms) shared by the IR, the x86-64 encoder, and the backend's
// register-allocating emitter: a tagged value that is either a physical
// register or a stack-slot offset, plus the fixed numbering of the 16
// logical x86-64 register slots the backend reasons about.
package regalloc

// Reg is a logical register code, numbered 0-15 to match the x86-64 ModRM/REX
// encoding used by internal/asmx64.
type Reg uint8

const (
	RAX Reg = 0b0000
	RCX Reg = 0b0001
	RDX Reg = 0b0010
	RBX Reg = 0b0011

	// NoReg is the "unassigned" sentinel. It occupies the RSP slot: RSP is
	// never used as a general-purpose location by this backend (it is the
	// native stack pointer), so the slot is free to repurpose as a sentinel.
	NoReg Reg = 0b0100

	// SpilledReg is the "lives on the stack" sentinel, occupying the RBP
	// slot for the same reason NoReg occupies RSP's: RBP is the frame
	// pointer, never a general-purpose location.
	SpilledReg Reg = 0b0101

	RSI Reg = 0b0110
	RDI Reg = 0b0111
	R8  Reg = 0b1000
	R9  Reg = 0b1001
	R10 Reg = 0b1010
	R11 Reg = 0b1011

	// Tmp1 and Tmp2 are scratch registers reserved for the encoder's
	// load/store fixups (materializing a stack-slot operand through a
	// register for an instruction that needs one). They occupy the R12/R13
	// slots and are never handed out by the allocator.
	Tmp1 Reg = 0b1100
	Tmp2 Reg = 0b1101

	R14 Reg = 0b1110
	R15 Reg = 0b1111
)

// String renders the conventional x86-64 register name.
func (r Reg) String() string {
	switch r {
	case RAX:
		return "rax"
	case RCX:
		return "rcx"
	case RDX:
		return "rdx"
	case RBX:
		return "rbx"
	case NoReg:
		return "rsp"
	case SpilledReg:
		return "rbp"
	case RSI:
		return "rsi"
	case RDI:
		return "rdi"
	case R8:
		return "r8"
	case R9:
		return "r9"
	case R10:
		return "r10"
	case R11:
		return "r11"
	case Tmp1:
		return "r12"
	case Tmp2:
		return "r13"
	case R14:
		return "r14"
	case R15:
		return "r15"
	default:
		return "?reg"
	}
}

// IsExtended reports whether encoding this register requires the x86-64 REX
// extension bit (registers 8-15).
func (r Reg) IsExtended() bool {
	return r >= R8
}

// Low3 returns the low 3 bits used in ModRM/opcode-embedded register fields;
// the 4th bit (extension) is carried separately via the REX prefix.
func (r Reg) Low3() byte {
	return byte(r) & 0b111
}

// ParamRegs lists the Windows x64 calling convention's integer argument
// registers in order, per spec.md §6.
var ParamRegs = [4]Reg{RCX, RDX, R8, R9}

// CallerSavedPool lists the registers the allocator may hand out, in the
// fixed preference order used both for ordinary allocation (lowest-numbered
// free register first) and for the parallel-move resolver's fresh-register
// search (spec.md §4.5).
var CallerSavedPool = [7]Reg{RAX, RCX, RDX, R8, R9, R10, R11}

// CalleeSaved lists registers the backend treats as permanently in-use
// (never allocated) because the emitted function never saves/restores them,
// per spec.md §4.4 "Initial marking".
var CalleeSaved = [5]Reg{RBX, RSI, RDI, R14, R15}
