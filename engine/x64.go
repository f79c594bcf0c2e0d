package engine

// Mnemonic-level x86-64 instruction encoding: small, single-purpose
// emitters building up a REX + opcode + ModRM (+ SIB/disp) byte
// sequence by hand, no assembler library.

// Register constants (index == their encoding in ModRM/REX.B/R/X).
const (
	regRAX = 0
	regRCX = 1
	regRDX = 2
	regRBX = 3
	regRSP = 4
	regRBP = 5
	regRSI = 6
	regRDI = 7
	regR8  = 8
)

// Condition-code nibbles shared by Jcc (0F 8x) and SETcc (0F 9x).
const (
	ccE  = 0x4 // equal / zero
	ccNE = 0x5 // not equal / not zero
	ccL  = 0xC // less (signed)
	ccGE = 0xD // greater or equal (signed)
	ccLE = 0xE // less or equal (signed)
	ccG  = 0xF // greater (signed)
)

func (g *CodeGen) emitByte(b byte) { g.code = append(g.code, b) }

func (g *CodeGen) emitBytes(bs ...byte) { g.code = append(g.code, bs...) }

func (g *CodeGen) emitU32(v uint32) {
	g.code = append(g.code, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (g *CodeGen) emitU64(v uint64) {
	g.code = append(g.code, byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// --- register-immediate ---

// movImm64 emits `movabs reg, imm64` (REX.W + B8+rd + imm64).
func (g *CodeGen) movImm64(reg int, val uint64) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x49
	}
	g.emitByte(rex)
	g.emitByte(byte(0xb8 + (reg & 7)))
	g.emitU64(val)
}

// --- rbp-relative local slot access ---

// loadLocal emits `mov reg, [rbp - offset]`.
func (g *CodeGen) loadLocal(offset, reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x4c
	}
	g.emitLocalModRM(rex, 0x8b, reg, offset)
}

// storeLocal emits `mov [rbp - offset], reg`.
func (g *CodeGen) storeLocal(offset, reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x4c
	}
	g.emitLocalModRM(rex, 0x89, reg, offset)
}

func (g *CodeGen) emitLocalModRM(rex, opcode byte, reg, offset int) {
	negOff := -offset
	if negOff >= -128 && negOff <= 127 {
		g.emitBytes(rex, opcode, byte(0x45|((reg&7)<<3)), byte(negOff))
	} else {
		g.emitBytes(rex, opcode, byte(0x85|((reg&7)<<3)))
		g.emitU32(uint32(int32(negOff)))
	}
}

// --- rsp-relative access (for the outgoing argument vector) ---

// storeRsp emits `mov [rsp + offset], reg`.
func (g *CodeGen) storeRsp(offset, reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x04
	}
	g.emitByte(rex)
	g.emitByte(0x89)
	g.emitSIBRsp(reg, offset)
}

// loadRsp emits `mov reg, [rsp + offset]`.
func (g *CodeGen) loadRsp(reg, offset int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x04
	}
	g.emitByte(rex)
	g.emitByte(0x8b)
	g.emitSIBRsp(reg, offset)
}

func (g *CodeGen) emitSIBRsp(reg, offset int) {
	switch {
	case offset == 0:
		g.emitBytes(byte(0x04|((reg&7)<<3)), 0x24)
	case offset >= -128 && offset <= 127:
		g.emitBytes(byte(0x44|((reg&7)<<3)), 0x24, byte(offset))
	default:
		g.emitBytes(byte(0x84|((reg&7)<<3)), 0x24)
		g.emitU32(uint32(int32(offset)))
	}
}

// --- stack push/pop ---

func (g *CodeGen) pushR(reg int) {
	if reg >= 8 {
		g.emitBytes(0x41, byte(0x50+(reg&7)))
	} else {
		g.emitByte(byte(0x50 + reg))
	}
}

func (g *CodeGen) popR(reg int) {
	if reg >= 8 {
		g.emitBytes(0x41, byte(0x58+(reg&7)))
	} else {
		g.emitByte(byte(0x58 + reg))
	}
}

// --- register-register ALU ops: `op dst, src` (dst = r/m, src = reg) ---

func (g *CodeGen) emitRR(opcode byte, dst, src int) {
	rex := byte(0x48)
	if src >= 8 {
		rex |= 0x04
	}
	if dst >= 8 {
		rex |= 0x01
	}
	modrm := byte(0xc0 | ((src & 7) << 3) | (dst & 7))
	g.emitBytes(rex, opcode, modrm)
}

func (g *CodeGen) movRR(dst, src int) { g.emitRR(0x89, dst, src) }
func (g *CodeGen) cmpRR(a, b int) { g.emitRR(0x39, a, b) }
func (g *CodeGen) testRR(a, b int) { g.emitRR(0x85, a, b) }

// --- register <- register op memory-local: `op reg, [rbp - offset]` (reg = dst, Gv/Ev form) ---

func (g *CodeGen) emitRegMemLocal(opcode []byte, reg, offset int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x04
	}
	g.emitByte(rex)
	g.emitBytes(opcode...)
	negOff := -offset
	if negOff >= -128 && negOff <= 127 {
		g.emitBytes(byte(0x45|((reg&7)<<3)), byte(negOff))
	} else {
		g.emitByte(byte(0x85 | ((reg & 7) << 3)))
		g.emitU32(uint32(int32(negOff)))
	}
}

func (g *CodeGen) addRM(reg, offset int) { g.emitRegMemLocal([]byte{0x03}, reg, offset) }
func (g *CodeGen) subRM(reg, offset int) { g.emitRegMemLocal([]byte{0x2b}, reg, offset) }
func (g *CodeGen) andRM(reg, offset int) { g.emitRegMemLocal([]byte{0x23}, reg, offset) }
func (g *CodeGen) orRM(reg, offset int) { g.emitRegMemLocal([]byte{0x0b}, reg, offset) }
func (g *CodeGen) cmpRM(reg, offset int) { g.emitRegMemLocal([]byte{0x3b}, reg, offset) }
func (g *CodeGen) imulRM(reg, offset int) { g.emitRegMemLocal([]byte{0x0f, 0xaf}, reg, offset) }

// idivM emits `idiv [rbp - offset]` (REX.W F7 /7); rax/rdx are the
// implicit dividend/quotient-remainder pair, set up by cqo beforehand.
func (g *CodeGen) idivM(offset int) {
	negOff := -offset
	g.emitByte(0x48)
	g.emitByte(0xf7)
	if negOff >= -128 && negOff <= 127 {
		g.emitBytes(0x7d, byte(negOff))
	} else {
		g.emitByte(0xbd)
		g.emitU32(uint32(int32(negOff)))
	}
}

// cqo sign-extends rax into rdx:rax ahead of idiv.
func (g *CodeGen) cqo() { g.emitBytes(0x48, 0x99) }

// --- immediate ALU on a register ---

func (g *CodeGen) subRI(reg int, val int32) { g.emitGroup1RI(0x28, reg, val) }
func (g *CodeGen) addRI(reg int, val int32) { g.emitGroup1RI(0x00, reg, val) }

// emitGroup1RI emits the group-1 (80/81/83) immediate ALU form;
// extBits selects the operation (/0 add, /5 sub, ...), passed as the
// pre-shifted ModRM.reg bits (e.g. 0x28 for /5).
func (g *CodeGen) emitGroup1RI(extBits byte, reg int, val int32) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	g.emitByte(rex)
	if val >= -128 && val <= 127 {
		g.emitBytes(0x83, 0xc0|extBits|byte(reg&7), byte(val))
	} else {
		g.emitBytes(0x81, 0xc0|extBits|byte(reg&7))
		g.emitU32(uint32(val))
	}
}

// xorRI8 emits `xor r/m64, imm8` (group-1 /6), used to implement `not`.
func (g *CodeGen) xorRI8(reg int, imm8 byte) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	g.emitBytes(rex, 0x83, byte(0xf0|(reg&7)), imm8)
}

// --- setcc / movzx ---

// setcc emits `setCC al` for the low byte of reg, using a cc nibble
// shared with jcc (0F 9x instead of 0F 8x).
func (g *CodeGen) setcc(cc byte, reg int) {
	rex := byte(0x40)
	if reg >= 8 {
		rex |= 0x01
	}
	g.emitBytes(rex, 0x0f, byte(0x90|cc), byte(0xc0|(reg&7)))
}

// movzxB zero-extends the low byte of reg into the full 64-bit
// register (0F B6 /r).
func (g *CodeGen) movzxB(reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x05
	}
	modrm := byte(0xc0 | ((reg & 7) << 3) | (reg & 7))
	g.emitBytes(rex, 0x0f, 0xb6, modrm)
}

// --- control transfer ---

func (g *CodeGen) jmpRel32() int {
	g.emitByte(0xe9)
	off := len(g.code)
	g.emitU32(0)
	return off
}

func (g *CodeGen) jccRel32(cc byte) int {
	g.emitBytes(0x0f, byte(0x80|cc))
	off := len(g.code)
	g.emitU32(0)
	return off
}

func (g *CodeGen) patchRel32At(fixupOff, targetOff int) {
	rel := int32(targetOff - (fixupOff + 4))
	g.code[fixupOff] = byte(rel)
	g.code[fixupOff+1] = byte(rel >> 8)
	g.code[fixupOff+2] = byte(rel >> 16)
	g.code[fixupOff+3] = byte(rel >> 24)
}

// callR emits `call reg` (FF /2, indirect).
func (g *CodeGen) callR(reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	g.emitBytes(rex, 0xff, byte(0xd0|(reg&7)))
}

func (g *CodeGen) ret() { g.emitByte(0xc3) }
func (g *CodeGen) nop() { g.emitByte(0x90) }
