package engine

// ensureOSREntry grows art in place with a new OSR entry point for
// label, materializing env's live variables as immediates into the
// same slots the compiled body already uses, then falling through to
// the body at that label. If an entry for this label already exists
// (a second loop iteration crossed the OSR threshold again before the
// first tier-up finished, or the label was already OSR'd from a
// different enclosing call) its offset is returned unchanged.
//
// The new prefix is always prepended to the front of the buffer and
// the function is remapped to a fresh executable page. Nothing else
// in the system holds a call site pointing directly at this artifact
// — every cross-function call goes through the dispatcher — so moving
// it invalidates no one.
func (rt *Runtime) ensureOSREntry(art *artifact, f *Function, label string, env *Env) (int, error) {
	if off, ok := art.osrEntries[label]; ok {
		return off, nil
	}
	bodyOffset, ok := art.bodyLabelOffsets[label]
	if !ok {
		return 0, ErrUnknownLabel
	}

	g := &CodeGen{slots: art.slots, labels: newLabelTable()}
	g.pushR(regRBP)
	g.movRR(regRBP, regRSP)
	g.subRI(regRSP, frameSize(len(art.slots)))
	g.storeLocal(8, regRDI) // slot 0: runtime back-pointer, same as a normal entry

	for _, name := range env.Names() {
		slot, ok := art.slots[name]
		if !ok {
			continue // not live in the compiled body (e.g. dead after this point)
		}
		v, _ := env.Get(name)
		g.movImm64(regRAX, uint64(v.Word()))
		g.storeLocal(slotOffset(slot), regRAX)
	}

	jmpOff := g.jmpRel32()
	prefix := g.code
	target := art.normalEntry + len(prefix) + bodyOffset
	g.patchRel32At(jmpOff, target)

	for lbl, off := range art.osrEntries {
		art.osrEntries[lbl] = off + len(prefix)
	}
	art.normalEntry += len(prefix)
	art.osrEntries[label] = 0
	art.code = append(append([]byte{}, prefix...), art.code...)

	eb, err := allocExecutable(art.code)
	if err != nil {
		return 0, err
	}
	art.base = eb.base
	return 0, nil
}
