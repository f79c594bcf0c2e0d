//go:build !windows

package engine

import (
	"syscall"
	"unsafe"
)

// execBuf is one W^X page mapping holding a compiled artifact's code.
// It is mapped read-write, the bytes are copied in, then remapped
// read-execute — never both at once — before any code in it runs.
// Artifacts are never unmapped: the cache is append-only for the
// lifetime of the process, the same contract runtime.go documents for
// the function-index → artifact table itself.
type execBuf struct {
	base uintptr
	size int
}

// allocExecutable copies code into a fresh anonymous mapping and
// switches it from writable to executable, so hand-assembled bytes can
// run in-process without cgo or an on-disk object file.
func allocExecutable(code []byte) (*execBuf, error) {
	page := syscall.Getpagesize()
	n := len(code)
	if n == 0 {
		n = 1
	}
	n = (n + page - 1) &^ (page - 1)

	mem, err := syscall.Mmap(-1, 0, n, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_PRIVATE|syscall.MAP_ANON)
	if err != nil {
		return nil, err
	}
	copy(mem, code)
	if err := syscall.Mprotect(mem, syscall.PROT_READ|syscall.PROT_EXEC); err != nil {
		syscall.Munmap(mem)
		return nil, err
	}
	return &execBuf{base: uintptr(unsafe.Pointer(&mem[0])), size: n}, nil
}
