// Package image implements the operations the floppy command exposes, each
// against the image file at a path.
package image

import (
	"fmt"

	"github.com/mit-pdos/go-floppy/alloc"
	"github.com/mit-pdos/go-floppy/common"
	"github.com/mit-pdos/go-floppy/disk"
	"github.com/mit-pdos/go-floppy/layout"
	"github.com/mit-pdos/go-floppy/session"
	"github.com/mit-pdos/go-floppy/util"
)

// InitEmptyDisk creates (or truncates) path as totalBlocks zero blocks.
func InitEmptyDisk(path string, totalBlocks uint64) error {
	if err := disk.CreateZeroed(path, totalBlocks); err != nil {
		return fmt.Errorf("initializing %s: %w", path, err)
	}
	return nil
}

// WriteSuperblock writes sb to block 0 of an existing image after checking
// that it fits the image. The image must not be mounted.
func WriteSuperblock(path string, sb layout.Superblock) error {
	d, err := disk.Open(path)
	if err != nil {
		return err
	}
	err = writeSuperblock(d, &sb)
	if cerr := d.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing superblock to %s: %w", path, err)
	}
	util.DPrintf(1, "wrote superblock to %s\n", path)
	return nil
}

func writeSuperblock(d disk.Disk, sb *layout.Superblock) error {
	sz, err := d.Size()
	if err != nil {
		return err
	}
	if err := sb.Validate(sz); err != nil {
		return err
	}
	if err := d.Write(common.SUPERBLOCK, layout.Encode(sb)); err != nil {
		return err
	}
	return d.Barrier()
}

// Format initializes path with the default size and layout.
func Format(path string) error {
	if err := InitEmptyDisk(path, common.DefaultBlockCount); err != nil {
		return err
	}
	return WriteSuperblock(path, layout.Default())
}

// ReadSuperblock decodes block 0 of path without mounting it.
func ReadSuperblock(path string) (layout.Superblock, error) {
	d, err := disk.OpenReadOnly(path)
	if err != nil {
		return layout.Superblock{}, err
	}
	defer d.Close()
	b, err := d.Read(common.SUPERBLOCK)
	if err != nil {
		return layout.Superblock{}, fmt.Errorf("reading superblock of %s: %w", path, err)
	}
	sb, err := layout.Decode(b)
	if err != nil {
		return layout.Superblock{}, fmt.Errorf("reading superblock of %s: %w", path, err)
	}
	return sb, nil
}

// ReadInode decodes inode inum of path without mounting it. The layout is
// validated first, so the inode table is known to lie within the image.
func ReadInode(path string, inum common.Inum) (layout.Inode, error) {
	d, err := disk.OpenReadOnly(path)
	if err != nil {
		return layout.Inode{}, err
	}
	defer d.Close()
	ip, err := readInode(d, inum)
	if err != nil {
		return layout.Inode{}, fmt.Errorf("reading inode %d of %s: %w", inum, path, err)
	}
	return ip, nil
}

func readInode(d disk.Disk, inum common.Inum) (layout.Inode, error) {
	b, err := d.Read(common.SUPERBLOCK)
	if err != nil {
		return layout.Inode{}, err
	}
	sb, err := layout.Decode(b)
	if err != nil {
		return layout.Inode{}, err
	}
	sz, err := d.Size()
	if err != nil {
		return layout.Inode{}, err
	}
	if err := sb.Validate(sz); err != nil {
		return layout.Inode{}, err
	}
	return sb.ReadInode(d, inum)
}

// DumpBlock returns a copy of block index of path.
func DumpBlock(path string, index uint64) (disk.Block, error) {
	d, err := disk.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	b, err := d.Read(index)
	if err != nil {
		return nil, fmt.Errorf("dumping %s: %w", path, err)
	}
	return b, nil
}

// AllocateBlock mounts path, allocates one data block and unmounts. If only
// the unmount fails the allocated block is returned along with the error;
// the allocation itself is already on disk.
func AllocateBlock(path string) (uint64, error) {
	s, err := session.Mount(path)
	if err != nil {
		return 0, err
	}
	bn, err := allocateAndUnmount(s)
	if err != nil {
		return bn, fmt.Errorf("allocating on %s: %w", path, err)
	}
	util.DPrintf(1, "allocated block %d on %s\n", bn, path)
	return bn, nil
}

// allocateAndUnmount always unmounts s. When both steps fail the unmount
// error is reported alongside the allocation error.
func allocateAndUnmount(s *session.Session) (uint64, error) {
	bn, err := alloc.Allocate(s)
	if err != nil {
		if uerr := s.Unmount(); uerr != nil {
			util.DPrintf(1, "allocate: unmount after failure: %v\n", uerr)
			return 0, fmt.Errorf("%w (unmount: %v)", err, uerr)
		}
		return 0, err
	}
	if err := s.Unmount(); err != nil {
		return bn, err
	}
	return bn, nil
}

// CheckMount mounts and unmounts path.
func CheckMount(path string) error {
	s, err := session.Mount(path)
	if err != nil {
		return err
	}
	return s.Unmount()
}
