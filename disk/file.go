package disk

import (
	"io"
	"math"
	"os"

	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-floppy/util"
)

var _ Disk = (*FileDisk)(nil)

// FileDisk is a Disk backed by a regular file. Concurrent access to the same
// file from several FileDisks is not coordinated. Once closed, every
// operation fails with an *IOError wrapping os.ErrClosed.
type FileDisk struct {
	path     string
	fd       int
	numBytes uint64
}

func openFile(path string, flags int) (*FileDisk, error) {
	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		return nil, &IOError{Op: OpOpen, Path: path, Err: err}
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, &IOError{Op: OpStat, Path: path, Err: err}
	}
	util.DPrintf(1, "open %s: %d bytes\n", path, stat.Size)
	return &FileDisk{path: path, fd: fd, numBytes: uint64(stat.Size)}, nil
}

// Open opens an existing disk image for reading and writing.
func Open(path string) (*FileDisk, error) {
	return openFile(path, unix.O_RDWR)
}

// OpenReadOnly opens an existing disk image for inspection; writes fail with
// an *IOError.
func OpenReadOnly(path string) (*FileDisk, error) {
	return openFile(path, unix.O_RDONLY)
}

// CreateZeroed truncates or creates path and fills it with numBlocks zero
// blocks, written sequentially.
func CreateZeroed(path string, numBlocks uint64) error {
	if util.MulOverflows(numBlocks, BlockSize) {
		return &BoundsError{Addr: numBlocks, Size: math.MaxUint64 / BlockSize}
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_TRUNC, 0666)
	if err != nil {
		return &IOError{Op: OpCreate, Path: path, Err: err}
	}
	d := &FileDisk{path: path, fd: fd, numBytes: numBlocks * BlockSize}
	zero := NewBlock()
	for a := uint64(0); a < numBlocks; a++ {
		if err := d.Write(a, zero); err != nil {
			d.Close()
			return err
		}
	}
	if err := d.Barrier(); err != nil {
		d.Close()
		return err
	}
	util.DPrintf(1, "created %s: %d blocks\n", path, numBlocks)
	return d.Close()
}

// offset returns the byte offset of block a, checking it against the size of
// the file.
func (d *FileDisk) offset(a uint64) (int64, error) {
	if util.MulOverflows(a, BlockSize) {
		return 0, &BoundsError{Addr: a, Size: d.numBytes / BlockSize}
	}
	off := a * BlockSize
	if off >= d.numBytes || off > math.MaxInt64 {
		return 0, &BoundsError{Addr: a, Size: d.numBytes / BlockSize}
	}
	return int64(off), nil
}

func (d *FileDisk) ReadTo(a uint64, buf Block) error {
	if uint64(len(buf)) != BlockSize {
		return &IOError{Op: OpRead, Path: d.path, Addr: a, Err: sizeError(buf)}
	}
	if d.fd < 0 {
		return d.closedError(OpRead, a)
	}
	off, err := d.offset(a)
	if err != nil {
		return err
	}
	var n int
	for n < len(buf) {
		m, err := unix.Pread(d.fd, buf[n:], off+int64(n))
		if err != nil {
			return &IOError{Op: OpRead, Path: d.path, Addr: a, Err: err}
		}
		if m == 0 {
			return &IOError{Op: OpRead, Path: d.path, Addr: a, Err: io.ErrUnexpectedEOF}
		}
		n += m
	}
	util.DPrintf(5, "read: %d\n", a)
	return nil
}

func (d *FileDisk) Read(a uint64) (Block, error) {
	buf := NewBlock()
	err := d.ReadTo(a, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *FileDisk) Write(a uint64, v Block) error {
	if uint64(len(v)) != BlockSize {
		return &IOError{Op: OpWrite, Path: d.path, Addr: a, Err: sizeError(v)}
	}
	if d.fd < 0 {
		return d.closedError(OpWrite, a)
	}
	off, err := d.offset(a)
	if err != nil {
		return err
	}
	var n int
	for n < len(v) {
		m, err := unix.Pwrite(d.fd, v[n:], off+int64(n))
		if err != nil {
			return &IOError{Op: OpWrite, Path: d.path, Addr: a, Err: err}
		}
		if m == 0 {
			return &IOError{Op: OpWrite, Path: d.path, Addr: a, Err: io.ErrShortWrite}
		}
		n += m
	}
	util.DPrintf(5, "write: %d\n", a)
	return nil
}

func (d *FileDisk) Size() (uint64, error) {
	return d.numBytes / BlockSize, nil
}

func (d *FileDisk) Barrier() error {
	// NOTE: on macOS, this flushes to the drive but doesn't actually issue a
	// disk barrier; see https://golang.org/src/internal/poll/fd_fsync_darwin.go
	// for more details. The correct replacement is to issue a fcntl syscall with
	// cmd F_FULLFSYNC.
	if d.fd < 0 {
		return d.closedError(OpSync, 0)
	}
	err := unix.Fsync(d.fd)
	if err != nil {
		return &IOError{Op: OpSync, Path: d.path, Err: err}
	}
	util.DPrintf(3, "barrier\n")
	return nil
}

// Close releases the file descriptor. d is unusable afterwards, even if
// close fails.
func (d *FileDisk) Close() error {
	if d.fd < 0 {
		return d.closedError(OpClose, 0)
	}
	fd := d.fd
	d.fd = -1
	err := unix.Close(fd)
	if err != nil {
		return &IOError{Op: OpClose, Path: d.path, Err: err}
	}
	util.DPrintf(1, "closed %s\n", d.path)
	return nil
}

func (d *FileDisk) closedError(op Op, a uint64) error {
	return &IOError{Op: op, Path: d.path, Addr: a, Err: os.ErrClosed}
}
