package ast

// NativeKind tags what EmitNative stored in the execution context's
// result slot. The slot is a plain two-word {tag, bits} pair, not a
// *value.Value: package ast stays free of a dependency on package value
// (see CompiledFunction's doc comment for the same reasoning on the
// bytecode side), so boxing the tag and bits into a real value happens on
// the Go side, in package native, once the native buffer returns.
type NativeKind uint64

// Result-slot tags a native program can leave behind. The two by-zero
// tags are Tang runtime errors, not crashes: the generated code checks
// the divisor before dividing and bails out to the matching tag instead
// of letting a bare IDIV fault the process (see emitIntDivMod).
const (
	NativeKindNull NativeKind = iota
	NativeKindBoolean
	NativeKindInteger
	NativeKindFloat
	NativeKindDivisionByZero
	NativeKindModuloByZero
)

// nativeEligible reports whether t is a single, concretely known scalar
// type the native code generator can represent as a raw machine word, as
// opposed to a heap-allocated string/array/map/function that needs the
// value vtable and GC registration this code generator never calls back
// into Go for.
func nativeEligible(t PossibleType) bool {
	switch t {
	case TypeNull, TypeBoolean, TypeInteger, TypeFloat:
		return true
	default:
		return false
	}
}

// nativeResultKind maps a statically known type to the tag EmitNative
// stores alongside a ReturnStatement's value, or ok=false when t isn't a
// single scalar type the result slot can represent.
func nativeResultKind(t PossibleType) (NativeKind, bool) {
	switch t {
	case TypeNull:
		return NativeKindNull, true
	case TypeBoolean:
		return NativeKindBoolean, true
	case TypeInteger:
		return NativeKindInteger, true
	case TypeFloat:
		return NativeKindFloat, true
	default:
		return 0, false
	}
}

// --- raw x86_64 encoding helpers --------------------------------------
//
// These helpers emit real opcode bytes for the scratch registers RAX/RBX
// (see native.RegScratchA/RegScratchB) and the frame registers R13/R14
// (native.RegGlobalFrame/RegResultSlot). None of them emit a CALL: the
// whole point of restricting native compilation to this self-contained
// numeric/boolean/null fast path is to never have to cross back into Go
// from inside generated code, which would require negotiating Go's
// internal calling convention (register assignments it reserves for
// itself, unspecified and subject to change between releases). The one
// place this package's generated bytes get invoked at all is the single,
// hand-written assembly trampoline in native/call_linux_amd64.s, which
// uses Go's stable, documented ABI0 argument-passing rules instead.

func emitPushRAX(e NativeEmitter) { e.EmitBytes(0x50) }
func emitPopRAX(e NativeEmitter)  { e.EmitBytes(0x58) }
func emitPopRBX(e NativeEmitter)  { e.EmitBytes(0x5B) }

// emitMovRAXImm64 loads an absolute 64-bit immediate into RAX (MOVABS).
func emitMovRAXImm64(e NativeEmitter, v uint64) {
	e.EmitBytes(0x48, 0xB8,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func emitTestRAX(e NativeEmitter) { e.EmitBytes(0x48, 0x85, 0xC0) } // test rax,rax

// emitJZ/emitJNZ/emitJMP emit a near jump with a 4-byte placeholder
// operand, registered with e so SetLabel can backpatch it later.
func emitJZ(e NativeEmitter, label int) {
	e.EmitBytes(0x0F, 0x84) // jz rel32
	e.AddLabelJump(label)
	e.EmitBytes(0, 0, 0, 0)
}
func emitJNZ(e NativeEmitter, label int) {
	e.EmitBytes(0x0F, 0x85) // jnz rel32
	e.AddLabelJump(label)
	e.EmitBytes(0, 0, 0, 0)
}
func emitJMP(e NativeEmitter, label int) {
	e.EmitBytes(0xE9) // jmp rel32
	e.AddLabelJump(label)
	e.EmitBytes(0, 0, 0, 0)
}

// emitSaveRSP/emitRestoreRSP bracket a native program's stack discipline:
// the prologue captures the entry RSP in R11, and any mid-expression bail
// (see emitIntDivMod) restores it before returning, since bailing out of a
// partly evaluated expression leaves operand words pushed that a bare RET
// would otherwise treat as the return address.
func emitSaveRSP(e NativeEmitter)    { e.EmitBytes(0x49, 0x89, 0xE3) } // mov r11,rsp
func emitRestoreRSP(e NativeEmitter) { e.EmitBytes(0x4C, 0x89, 0xDC) } // mov rsp,r11

func emitNegRAX(e NativeEmitter) { e.EmitBytes(0x48, 0xF7, 0xD8) }       // neg rax
func emitNotRAX(e NativeEmitter) { e.EmitBytes(0x48, 0x83, 0xF0, 0x01) } // xor rax,1

// emitFlipSignRAX toggles bit 63 of RAX in place. Negating a float64 held
// as raw bits is just flipping its sign bit, so this skips XMM entirely.
func emitFlipSignRAX(e NativeEmitter) { e.EmitBytes(0x48, 0x0F, 0xBA, 0xF8, 0x3F) } // btc rax,63

func emitAddRAXRBX(e NativeEmitter) { e.EmitBytes(0x48, 0x01, 0xD8) }       // add rax,rbx
func emitSubRAXRBX(e NativeEmitter) { e.EmitBytes(0x48, 0x29, 0xD8) }       // sub rax,rbx
func emitMulRAXRBX(e NativeEmitter) { e.EmitBytes(0x48, 0x0F, 0xAF, 0xC3) } // imul rax,rbx

// emitIntDivMod divides RAX by RBX (signed), leaving the quotient (mod
// false) or remainder (mod true) in RAX. A zero divisor bails out of the
// whole native program, storing NativeKindDivisionByZero (or
// NativeKindModuloByZero when mod is true) in the result slot and returning, rather than letting IDIV raise SIGFPE. The bail can
// fire mid-expression with operand words still pushed, so it restores the
// entry RSP saved by the program prologue before the RET.
func emitIntDivMod(e NativeEmitter, mod bool) {
	bailKind := NativeKindDivisionByZero
	if mod {
		bailKind = NativeKindModuloByZero
	}
	e.EmitBytes(0x48, 0x85, 0xDB) // test rbx,rbx
	okLabel := e.GetLabel()
	emitJNZ(e, okLabel)
	emitMovRAXImm64(e, 0)
	emitStoreResultWord(e, bailKind)
	emitRestoreRSP(e)
	e.EmitBytes(0xC3) // ret
	e.SetLabel(okLabel)
	e.EmitBytes(0x48, 0x99)       // cqo
	e.EmitBytes(0x48, 0xF7, 0xFB) // idiv rbx
	if mod {
		e.EmitBytes(0x48, 0x89, 0xD0) // mov rax,rdx
	}
}

// emitCompare compares RAX against RBX (integer: CMP; float: UCOMISD on
// their bit patterns moved into XMM0/XMM1) and leaves 0/1 in RAX.
// UCOMISD sets flags the same way an unsigned compare would, so the float
// path uses SETB/SETBE/SETA/SETAE rather than the signed SETL/SETLE/SETG/
// SETGE the integer path needs.
func emitCompare(e NativeEmitter, op string, isFloat bool) {
	if isFloat {
		e.EmitBytes(0x66, 0x48, 0x0F, 0x6E, 0xC0) // movq xmm0,rax
		e.EmitBytes(0x66, 0x48, 0x0F, 0x6E, 0xCB) // movq xmm1,rbx
		e.EmitBytes(0x66, 0x0F, 0x2E, 0xC1)       // ucomisd xmm0,xmm1
		switch op {
		case "<":
			e.EmitBytes(0x0F, 0x92, 0xC0) // setb al
		case "<=":
			e.EmitBytes(0x0F, 0x96, 0xC0) // setbe al
		case ">":
			e.EmitBytes(0x0F, 0x97, 0xC0) // seta al
		case ">=":
			e.EmitBytes(0x0F, 0x93, 0xC0) // setae al
		case "==":
			e.EmitBytes(0x0F, 0x94, 0xC0) // sete al
		case "!=":
			e.EmitBytes(0x0F, 0x95, 0xC0) // setne al
		}
	} else {
		e.EmitBytes(0x48, 0x39, 0xD8) // cmp rax,rbx
		switch op {
		case "<":
			e.EmitBytes(0x0F, 0x9C, 0xC0) // setl al
		case "<=":
			e.EmitBytes(0x0F, 0x9E, 0xC0) // setle al
		case ">":
			e.EmitBytes(0x0F, 0x9F, 0xC0) // setg al
		case ">=":
			e.EmitBytes(0x0F, 0x9D, 0xC0) // setge al
		case "==":
			e.EmitBytes(0x0F, 0x94, 0xC0) // sete al
		case "!=":
			e.EmitBytes(0x0F, 0x95, 0xC0) // setne al
		}
	}
	e.EmitBytes(0x48, 0x0F, 0xB6, 0xC0) // movzx rax,al
}

// emitFloatArith performs op on the float64 bit patterns held in RAX/RBX,
// leaving the result's bit pattern back in RAX.
func emitFloatArith(e NativeEmitter, op string) {
	e.EmitBytes(0x66, 0x48, 0x0F, 0x6E, 0xC0) // movq xmm0,rax
	e.EmitBytes(0x66, 0x48, 0x0F, 0x6E, 0xCB) // movq xmm1,rbx
	switch op {
	case "+":
		e.EmitBytes(0xF2, 0x0F, 0x58, 0xC1) // addsd xmm0,xmm1
	case "-":
		e.EmitBytes(0xF2, 0x0F, 0x5C, 0xC1) // subsd xmm0,xmm1
	case "*":
		e.EmitBytes(0xF2, 0x0F, 0x59, 0xC1) // mulsd xmm0,xmm1
	case "/":
		e.EmitBytes(0xF2, 0x0F, 0x5E, 0xC1) // divsd xmm0,xmm1
	}
	e.EmitBytes(0x66, 0x48, 0x0F, 0x7E, 0xC0) // movq rax,xmm0
}

// emitLoadGlobal/emitStoreGlobal address RegGlobalFrame (R13) + slot*8.
// R13 shares RBP's ModRM quirk (mod=00 with that base means RIP-relative,
// not "no displacement"), so these always use the disp32 form even for
// slot 0. REX.B is set because R13/R14 are register numbers 8 and up;
// REX.R stays clear since RAX (register 0) never needs the extension bit.
func emitLoadGlobal(e NativeEmitter, slot int) {
	disp := int32(slot * 8)
	e.EmitBytes(0x49, 0x8B, 0x85, byte(disp), byte(disp>>8), byte(disp>>16), byte(disp>>24)) // mov rax,[r13+disp32]
}
func emitStoreGlobal(e NativeEmitter, slot int) {
	disp := int32(slot * 8)
	e.EmitBytes(0x49, 0x89, 0x85, byte(disp), byte(disp>>8), byte(disp>>16), byte(disp>>24)) // mov [r13+disp32],rax
}

// emitStoreResultWord writes kind and RAX into the two words RegResultSlot
// (R14) points at: [r14]=kind, [r14+8]=value.
func emitStoreResultWord(e NativeEmitter, kind NativeKind) {
	k := uint32(kind)
	e.EmitBytes(0x49, 0xC7, 0x86, 0, 0, 0, 0, byte(k), byte(k>>8), byte(k>>16), byte(k>>24)) // mov qword[r14],imm32
	e.EmitBytes(0x49, 0x89, 0x86, 8, 0, 0, 0)                                                // mov [r14+8],rax
}

// EmitNative compiles the whole program to machine code: a prologue that
// captures the entry RSP, every statement in order, and an epilogue that
// stores the last expression statement's value (still in RAX after its
// trailing pop) into the result slot. The program's result must have a
// statically known scalar representation for the result slot, so a program
// whose final statement is anything but a scalar-typed expression statement
// or a top-level return declines, and the caller falls back to bytecode.
func (p *Program) EmitNative(e NativeEmitter) bool {
	if len(p.Statements) == 0 {
		return false
	}
	p.inferGlobalTypes()

	last := p.Statements[len(p.Statements)-1]
	var resultKind NativeKind
	endsWithReturn := false
	switch s := last.(type) {
	case *ExpressionStatement:
		if s.Expression == nil {
			return false
		}
		kind, ok := nativeResultKind(s.Expression.Type())
		if !ok {
			return false
		}
		resultKind = kind
	case *ReturnStatement:
		endsWithReturn = true
	default:
		return false
	}

	emitSaveRSP(e)
	for _, stmt := range p.Statements {
		if !stmt.EmitNative(e) {
			return false
		}
	}
	if !endsWithReturn {
		emitStoreResultWord(e, resultKind)
		e.EmitBytes(0xC3) // ret
	}
	return true
}

// inferGlobalTypes is an optimistic fixed-point pass assigning a static
// scalar type to each global variable whose every typed assignment agrees
// on one, so identifier reads inside loop bodies and conditions can
// participate in native compilation (Analyze alone types only literals and
// the expressions built from them). Soundness rests on the emitters, not
// on this pass: an assignment whose value stays untyped declines native
// emission for the whole program, so a type concluded here is never acted
// on unless every store to that slot provably writes the same raw-word
// representation.
func (p *Program) inferGlobalTypes() {
	walk := func(callback func(Node)) {
		for _, s := range p.Statements {
			s.Walk(callback)
		}
	}
	for pass := 0; pass < 16; pass++ {
		union := make(map[string]PossibleType)
		walk(func(n Node) {
			ae, ok := n.(*AssignExpression)
			if !ok {
				return
			}
			if id, ok := ae.Target.(*Identifier); ok && id.Resolved == ClassGlobal {
				if t := ae.Value.Type(); t != Unknown {
					union[id.Mangled] |= t
				}
			}
		})

		changed := false
		walk(func(n Node) {
			var t PossibleType
			var slot *PossibleType
			switch node := n.(type) {
			case *Identifier:
				if node.Resolved != ClassGlobal {
					return
				}
				if u, ok := union[node.Mangled]; ok && nativeEligible(u) {
					t = u
				} else {
					t = Unknown
				}
				slot = &node.PossibleType
			case *PrefixExpression:
				rt := node.Right.Type()
				switch {
				case node.Operator == "-" && (rt == TypeInteger || rt == TypeFloat):
					t = rt
				case node.Operator == "!" && rt == TypeBoolean:
					t = TypeBoolean
				default:
					t = Unknown
				}
				slot = &node.PossibleType
			case *InfixExpression:
				t = inferInfixType(node.Operator, node.Left.Type(), node.Right.Type())
				slot = &node.PossibleType
			case *TernaryExpression:
				if ct, at := node.Consequence.Type(), node.Alternative.Type(); ct == at && nativeEligible(ct) {
					t = ct
				} else {
					t = Unknown
				}
				slot = &node.PossibleType
			case *AssignExpression:
				t = node.Value.Type()
				slot = &node.PossibleType
			default:
				return
			}
			cur := *slot
			if cur == 0 {
				cur = Unknown
			}
			if cur != t {
				*slot = t
				changed = true
			}
		})
		if !changed {
			return
		}
	}
}
