package disk

import (
	"fmt"
	"strings"
)

// BoundsError reports a block address outside of the disk.
type BoundsError struct {
	Addr uint64
	Size uint64 // disk size in blocks
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("block %d out of bounds (disk has %d blocks)", e.Addr, e.Size)
}

// Op names the operation an IOError failed in.
type Op string

const (
	OpOpen   Op = "open"
	OpCreate Op = "create"
	OpStat   Op = "stat"
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpSync   Op = "sync"
	OpClose  Op = "close"
)

// perBlock reports whether the operation addresses a single block.
func (op Op) perBlock() bool {
	return op == OpRead || op == OpWrite
}

// IOError reports a failure at the OS boundary. Path is empty for disks not
// backed by a file; Addr is meaningful only for reads and writes.
type IOError struct {
	Op   Op
	Path string
	Addr uint64
	Err  error
}

func (e *IOError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Op))
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.Op.perBlock() {
		fmt.Fprintf(&b, " block %d", e.Addr)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func sizeError(v Block) error {
	return fmt.Errorf("buffer is not block-sized (%d bytes)", len(v))
}
