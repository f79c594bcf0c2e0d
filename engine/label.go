package engine

// jumpFixup records one emitted rel32 placeholder (a jmp or jcc) still
// waiting for its target label's offset to become known. The trailing
// jump of an OSR prefix is patched directly by ensureOSREntry instead.
type jumpFixup struct {
	patchOffset int
	label       string
}

// labelTable tracks where each label landed in the code buffer and the
// jumps still waiting to be patched to it. Labels can be referenced
// before they're seen (a backward branch's target is typically behind
// it, but loop-entry jumps are often forward), so every fixup is
// collected up front and resolved in one pass at the end of a
// function's emission.
type labelTable struct {
	offsets map[string]int
	fixups  []jumpFixup
}

func newLabelTable() *labelTable {
	return &labelTable{offsets: make(map[string]int)}
}

func (lt *labelTable) bind(name string, offset int) {
	lt.offsets[name] = offset
}

func (lt *labelTable) fixup(patchOffset int, label string) {
	lt.fixups = append(lt.fixups, jumpFixup{patchOffset: patchOffset, label: label})
}

// resolve patches every recorded fixup against lt.offsets. It must run
// only after every label in the function has been bound.
func (lt *labelTable) resolve(g *CodeGen) error {
	for _, fx := range lt.fixups {
		target, ok := lt.offsets[fx.label]
		if !ok {
			return ErrUnknownLabel
		}
		g.patchRel32At(fx.patchOffset, target)
	}
	return nil
}
