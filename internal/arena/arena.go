// Package arena implements the Code Arena: a fixed-size, read-write-execute
// memory region that holds concatenated host-code blocks produced by the
// back-end compiler. It is append-only for the lifetime of the process —
// a block written for a given offset is never overwritten and the arena
// never reclaims space.
//
// The region is mapped anonymously with mmap(PROT_READ|PROT_WRITE|PROT_EXEC);
// the backing file passed to New exists only as a placeholder for a future
// file-backed tier (see SPEC_FULL.md §11) and is never read back by the
// arena itself.
//
// © 2025 rvjit authors. MIT License.
package arena

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/Voskan/rvjit/internal/unsafehelpers"
)

// Arena is a bump allocator over a single mmap'd RWX region. It is not
// thread-safe: the execution loop that owns an Arena is single-threaded per
// spec, so no locking is performed here.
type Arena struct {
	mem    []byte // RWX-mapped backing memory, len == cap == size
	offset uint64 // bump pointer, monotonically non-decreasing
	size   uint64 // total capacity in bytes
	file   *os.File
	page   uint64
}

// New maps a fresh Code Arena of the given size. backingPath is created and
// truncated to size bytes as a placeholder file (spec.md §6); the arena
// itself is always mapped anonymously, never file-backed.
func New(size uint64, backingPath string) (*Arena, error) {
	if size == 0 {
		return nil, fmt.Errorf("arena: size must be > 0")
	}

	f, err := os.OpenFile(backingPath, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("arena: create backing file: %w", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: resize backing file: %w", err)
	}

	mem, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: mmap: %w", err)
	}

	page := uint64(unix.Getpagesize())
	if !unsafehelpers.IsPowerOfTwo(uintptr(page)) {
		unix.Munmap(mem)
		f.Close()
		return nil, fmt.Errorf("arena: host page size %d is not a power of two", page)
	}

	return &Arena{
		mem:  mem,
		size: size,
		file: f,
		page: page,
	}, nil
}

// Append copies code into the arena at a page-aligned offset, invalidates the
// host instruction cache for the written range, and returns the offset the
// block now lives at. Arena exhaustion is fatal per spec.md §7: the caller
// is expected to treat a non-nil error as unrecoverable.
func (a *Arena) Append(code []byte) (offset uint64, err error) {
	aligned := uint64(unsafehelpers.AlignUp(uintptr(a.offset), uintptr(a.page)))
	need := uint64(len(code))
	if aligned+need > a.size {
		return 0, fmt.Errorf("arena: exhausted: need %d bytes at offset %d, capacity %d", need, aligned, a.size)
	}

	copy(a.mem[aligned:aligned+need], code)
	invalidateICache(a.mem[aligned : aligned+need])
	a.offset = aligned + need
	return aligned, nil
}

// Offset returns the current bump pointer (bytes used, including alignment
// padding already consumed).
func (a *Arena) Offset() uint64 { return a.offset }

// Size returns the total capacity of the arena in bytes.
func (a *Arena) Size() uint64 { return a.size }

// Pointer returns the host address of the byte at the given offset. The
// caller must only use this for offsets previously returned by Append.
func (a *Arena) Pointer(offset uint64) uintptr {
	return uintptr(unsafe.Pointer(&a.mem[offset]))
}

// Close unmaps the region and releases the backing file handle. The backing
// file on disk is left in place (it was only ever a size placeholder).
func (a *Arena) Close() error {
	if a.mem != nil {
		if err := unix.Munmap(a.mem); err != nil {
			return fmt.Errorf("arena: munmap: %w", err)
		}
		a.mem = nil
	}
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}
