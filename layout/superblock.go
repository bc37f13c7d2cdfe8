// Package layout describes the on-disk records of a floppy image: the
// superblock in block 0 and the 64-byte inodes of the inode table.
//
// All integers are little-endian. The superblock is a 70-byte record padded
// with zeroes to one block:
//
//	offset  width  field
//	0       8      InodeTableBlockCount
//	8       8      InodeTableBlockStart
//	16      8      BlockBitmapBlockStart
//	24      8      BlockBitmapBlockCount
//	32      8      InodeBitmapBlockStart
//	40      8      InodeBitmapBlockCount
//	48      8      DataRegionBlockStart
//	56      8      DataRegionBlockCount
//	64      4      Magic (0xFEAB1E33)
//	68      1      VersionMajor
//	69      1      VersionMinor
//	70      442    reserved
package layout

import (
	"fmt"
	"strings"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-floppy/addr"
	"github.com/mit-pdos/go-floppy/common"
	"github.com/mit-pdos/go-floppy/disk"
)

// versionOff is the byte offset of the two version bytes.
const versionOff = 68

type Superblock struct {
	InodeTableBlockCount  uint64 `yaml:"inodeTableBlockCount"`
	InodeTableBlockStart  uint64 `yaml:"inodeTableBlockStart"`
	BlockBitmapBlockStart uint64 `yaml:"blockBitmapBlockStart"`
	BlockBitmapBlockCount uint64 `yaml:"blockBitmapBlockCount"`
	InodeBitmapBlockStart uint64 `yaml:"inodeBitmapBlockStart"`
	InodeBitmapBlockCount uint64 `yaml:"inodeBitmapBlockCount"`
	DataRegionBlockStart  uint64 `yaml:"dataRegionBlockStart"`
	DataRegionBlockCount  uint64 `yaml:"dataRegionBlockCount"`
	Magic                 uint32 `yaml:"magic"`
	VersionMajor          uint8  `yaml:"versionMajor"`
	VersionMinor          uint8  `yaml:"versionMinor"`
}

// Default returns the literal layout of a freshly initialized 10 MiB image.
func Default() Superblock {
	return Superblock{
		InodeTableBlockCount:  common.DefaultInodeTableBlocks,
		InodeTableBlockStart:  common.DefaultInodeTableStart,
		BlockBitmapBlockStart: common.DefaultBitmapStart,
		BlockBitmapBlockCount: common.DefaultBitmapBlocks,
		InodeBitmapBlockStart: common.DefaultInodeBitmapStart,
		InodeBitmapBlockCount: common.DefaultInodeBitmapBlks,
		DataRegionBlockStart:  common.DefaultDataStart,
		DataRegionBlockCount:  common.DefaultDataBlocks,
		Magic:                 common.Magic,
		VersionMajor:          common.VersionMajor,
		VersionMinor:          common.VersionMinor,
	}
}

// Encode lays sb out in a zero-padded block.
func Encode(sb *Superblock) disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(sb.InodeTableBlockCount)
	enc.PutInt(sb.InodeTableBlockStart)
	enc.PutInt(sb.BlockBitmapBlockStart)
	enc.PutInt(sb.BlockBitmapBlockCount)
	enc.PutInt(sb.InodeBitmapBlockStart)
	enc.PutInt(sb.InodeBitmapBlockCount)
	enc.PutInt(sb.DataRegionBlockStart)
	enc.PutInt(sb.DataRegionBlockCount)
	enc.PutInt32(sb.Magic)
	b := enc.Finish()
	b[versionOff] = sb.VersionMajor
	b[versionOff+1] = sb.VersionMinor
	return b
}

// Decode parses block 0 of an image. It fails with a *CorruptionError if the
// magic number does not match.
func Decode(b disk.Block) (Superblock, error) {
	if uint64(len(b)) != disk.BlockSize {
		return Superblock{}, corruptf("superblock is %d bytes, want %d",
			len(b), disk.BlockSize)
	}
	dec := marshal.NewDec(b)
	var sb Superblock
	sb.InodeTableBlockCount = dec.GetInt()
	sb.InodeTableBlockStart = dec.GetInt()
	sb.BlockBitmapBlockStart = dec.GetInt()
	sb.BlockBitmapBlockCount = dec.GetInt()
	sb.InodeBitmapBlockStart = dec.GetInt()
	sb.InodeBitmapBlockCount = dec.GetInt()
	sb.DataRegionBlockStart = dec.GetInt()
	sb.DataRegionBlockCount = dec.GetInt()
	sb.Magic = dec.GetInt32()
	sb.VersionMajor = b[versionOff]
	sb.VersionMinor = b[versionOff+1]
	if sb.Magic != common.Magic {
		return Superblock{}, corruptf("magic number mismatch: %#08x", sb.Magic)
	}
	return sb, nil
}

// BitmapBits is the number of bits in the block bitmap region.
func (sb *Superblock) BitmapBits() uint64 {
	return sb.BlockBitmapBlockCount * common.NBITBLOCK
}

// DataBlockEnd is one past the last block of the data region.
func (sb *Superblock) DataBlockEnd() uint64 {
	return sb.DataRegionBlockStart + sb.DataRegionBlockCount
}

func (sb *Superblock) InodeCount() uint64 {
	return sb.InodeTableBlockCount * common.INODEBLK
}

// InodeAddr locates inode inum in the inode table.
func (sb *Superblock) InodeAddr(inum common.Inum) (addr.Addr, error) {
	if uint64(inum) >= sb.InodeCount() {
		return addr.Addr{}, fmt.Errorf("inode %d out of range (%d inodes)",
			inum, sb.InodeCount())
	}
	return addr.MkInodeAddr(sb.InodeTableBlockStart, inum), nil
}

func (sb Superblock) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "major version: %d\n", sb.VersionMajor)
	fmt.Fprintf(&b, "minor version: %d\n", sb.VersionMinor)
	fmt.Fprintf(&b, "inode table block count: %d\n", sb.InodeTableBlockCount)
	fmt.Fprintf(&b, "inode table block start: %d\n", sb.InodeTableBlockStart)
	fmt.Fprintf(&b, "block bitmap block count: %d\n", sb.BlockBitmapBlockCount)
	fmt.Fprintf(&b, "block bitmap block start: %d\n", sb.BlockBitmapBlockStart)
	fmt.Fprintf(&b, "inode bitmap block count: %d\n", sb.InodeBitmapBlockCount)
	fmt.Fprintf(&b, "inode bitmap block start: %d\n", sb.InodeBitmapBlockStart)
	fmt.Fprintf(&b, "data region block start: %d\n", sb.DataRegionBlockStart)
	fmt.Fprintf(&b, "data region block count: %d\n", sb.DataRegionBlockCount)
	return b.String()
}
