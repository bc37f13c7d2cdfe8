package alloc

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mit-pdos/go-floppy/addr"
	"github.com/mit-pdos/go-floppy/common"
	"github.com/mit-pdos/go-floppy/disk"
	"github.com/mit-pdos/go-floppy/session"
	"github.com/mit-pdos/go-floppy/util"
)

var ErrExhausted = errors.New("no free data blocks")

// Alloc hands out data blocks using the block bitmap. Bit n of the bitmap
// corresponds to block base+n; only the first max bits are ever used.
//
// A loaded Alloc reaches the disk only through its session, so it can no
// longer write once the session is unmounted.
type Alloc struct {
	lock   *sync.Mutex      // protects bitmap and dirty
	s      *session.Session // nil for a memory-only allocator
	start  common.Bnum      // first bitmap block
	base   uint64
	max    uint64
	bitmap Bitmap
	dirty  map[common.Bnum]bool
}

// MkMaxAlloc returns a memory-only allocator for the numbers [0, max), for
// tests and callers without a disk. Flush only forgets the dirty set.
func MkMaxAlloc(max uint64) *Alloc {
	return &Alloc{
		lock:   new(sync.Mutex),
		base:   0,
		max:    max,
		bitmap: make(Bitmap, util.RoundUp(max, 8)),
		dirty:  make(map[common.Bnum]bool),
	}
}

// Load reads the block bitmap of a mounted session into memory.
func Load(s *session.Session) (*Alloc, error) {
	d := s.Disk()
	if d == nil {
		return nil, session.ErrUnmounted
	}
	sb := s.Superblock()
	sz, err := d.Size()
	if err != nil {
		return nil, err
	}
	// the cached superblock may have been changed since mount; its sizes
	// bound the buffer below
	if err := sb.Validate(sz); err != nil {
		return nil, err
	}
	buf, err := disk.ReadBatch(d, sb.BlockBitmapBlockStart, sb.BlockBitmapBlockCount)
	if err != nil {
		return nil, fmt.Errorf("reading block bitmap: %w", err)
	}
	util.DPrintf(3, "alloc: loaded %d bitmap blocks at %d\n",
		sb.BlockBitmapBlockCount, sb.BlockBitmapBlockStart)
	return &Alloc{
		lock:   new(sync.Mutex),
		s:      s,
		start:  sb.BlockBitmapBlockStart,
		base:   sb.DataRegionBlockStart,
		max:    sb.DataRegionBlockCount,
		bitmap: Bitmap(buf),
		dirty:  make(map[common.Bnum]bool),
	}, nil
}

func (a *Alloc) markDirty(n uint64) {
	a.dirty[addr.MkBitAddr(a.start, n).Blkno] = true
}

func (a *Alloc) bit(num uint64) (uint64, error) {
	if num < a.base || num-a.base >= a.max {
		return 0, fmt.Errorf("block %d is outside the data region [%d, %d)",
			num, a.base, a.base+a.max)
	}
	return num - a.base, nil
}

// AllocNum allocates the lowest free block.
func (a *Alloc) AllocNum() (uint64, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	n, ok := a.bitmap.FirstZero(a.max)
	if !ok {
		return 0, ErrExhausted
	}
	a.bitmap.Set(n)
	a.markDirty(n)
	util.DPrintf(5, "AllocNum: bit %d block %d\n", n, a.base+n)
	return a.base + n, nil
}

func (a *Alloc) FreeNum(num uint64) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	n, err := a.bit(num)
	if err != nil {
		return err
	}
	a.bitmap.Clear(n)
	a.markDirty(n)
	return nil
}

// MarkUsed reserves num without searching for it.
func (a *Alloc) MarkUsed(num uint64) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	n, err := a.bit(num)
	if err != nil {
		return err
	}
	a.bitmap.Set(n)
	a.markDirty(n)
	return nil
}

func (a *Alloc) NumFree() uint64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.max - a.bitmap.Count(a.max)
}

// Flush writes the bitmap blocks changed since the last flush, batching
// runs of consecutive blocks. It fails with session.ErrUnmounted once the
// session is gone.
func (a *Alloc) Flush() error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.s == nil {
		a.dirty = make(map[common.Bnum]bool)
		return nil
	}
	d := a.s.Disk()
	if d == nil {
		return session.ErrUnmounted
	}
	blknos := make([]common.Bnum, 0, len(a.dirty))
	for bn := range a.dirty {
		blknos = append(blknos, bn)
	}
	sort.Slice(blknos, func(i, j int) bool { return blknos[i] < blknos[j] })
	for len(blknos) > 0 {
		n := 1
		for n < len(blknos) && blknos[n] == blknos[0]+common.Bnum(n) {
			n++
		}
		run := blknos[:n]
		blocks := make([]disk.Block, n)
		for i, bn := range run {
			off := (bn - a.start) * disk.BlockSize
			blocks[i] = disk.Block(a.bitmap[off : off+disk.BlockSize])
		}
		util.DPrintf(5, "alloc: flush bitmap blocks [%d, %d)\n", run[0], run[0]+common.Bnum(n))
		if err := disk.WriteBatch(d, run[0], blocks); err != nil {
			return fmt.Errorf("writing block bitmap: %w", err)
		}
		for _, bn := range run {
			delete(a.dirty, bn)
		}
		blknos = blknos[n:]
	}
	return nil
}

// Allocate finds the first free data block of a mounted image, marks it
// allocated and writes the bitmap block holding its bit back to disk before
// returning the block number.
func Allocate(s *session.Session) (uint64, error) {
	a, err := Load(s)
	if err != nil {
		return 0, err
	}
	bn, err := a.AllocNum()
	if err != nil {
		return 0, err
	}
	if err := a.Flush(); err != nil {
		return 0, err
	}
	return bn, nil
}
