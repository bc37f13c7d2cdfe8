// Package disk provides bounds-checked access to the fixed-size blocks of a
// disk image.
package disk

import (
	"github.com/mit-pdos/go-floppy/common"
)

// Block is a 512-byte buffer
type Block = []byte

const BlockSize uint64 = common.BlockSize

// Disk provides access to a logical block-based disk
type Disk interface {
	// Read reads a disk block by address
	//
	// Fails with *BoundsError unless a < Size().
	Read(a uint64) (Block, error)

	// ReadTo reads the disk block at a and stores the result in b
	//
	// Fails with *BoundsError unless a < Size().
	ReadTo(a uint64, b Block) error

	// Write updates a disk block by address
	//
	// Fails with *BoundsError unless a < Size().
	Write(a uint64, v Block) error

	// Size reports how big the disk is, in blocks
	Size() (uint64, error)

	// Barrier ensures data is persisted.
	//
	// When it returns, all outstanding writes are guaranteed to be durably on
	// disk
	Barrier() error

	// Close releases any resources used by the disk and makes it unusable.
	Close() error
}

func NewBlock() Block {
	return make(Block, BlockSize)
}

// ReadBatch reads n consecutive blocks starting at start into one contiguous
// buffer of n*BlockSize bytes.
func ReadBatch(d Disk, start uint64, n uint64) ([]byte, error) {
	buf := make([]byte, n*BlockSize)
	for i := uint64(0); i < n; i++ {
		err := d.ReadTo(start+i, buf[i*BlockSize:(i+1)*BlockSize])
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// WriteBatch writes blocks to consecutive addresses starting at start.
func WriteBatch(d Disk, start uint64, blocks []Block) error {
	for i, b := range blocks {
		err := d.Write(start+uint64(i), b)
		if err != nil {
			return err
		}
	}
	return nil
}
