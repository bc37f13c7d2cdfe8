package layout

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-floppy/common"
	"github.com/mit-pdos/go-floppy/disk"
)

const NDIRECT = 8

// Inode is the 64-byte inode table record: index, file size, direct block
// pointers and 24 reserved bytes. Nothing in this module allocates inodes
// yet; they can only be inspected.
type Inode struct {
	Index  uint32          `yaml:"index"`
	Size   uint32          `yaml:"size"`
	Direct [NDIRECT]uint32 `yaml:"direct,flow"`
}

func EncodeInode(ip *Inode) []byte {
	enc := marshal.NewEnc(common.INODESZ)
	enc.PutInt32(ip.Index)
	enc.PutInt32(ip.Size)
	for _, bn := range ip.Direct {
		enc.PutInt32(bn)
	}
	return enc.Finish()
}

func DecodeInode(b []byte) (Inode, error) {
	if uint64(len(b)) != common.INODESZ {
		return Inode{}, fmt.Errorf("inode is %d bytes, want %d", len(b), common.INODESZ)
	}
	dec := marshal.NewDec(b)
	var ip Inode
	ip.Index = dec.GetInt32()
	ip.Size = dec.GetInt32()
	for i := range ip.Direct {
		ip.Direct[i] = dec.GetInt32()
	}
	return ip, nil
}

// ReadInode reads inode inum from the inode table on d.
func (sb *Superblock) ReadInode(d disk.Disk, inum common.Inum) (Inode, error) {
	a, err := sb.InodeAddr(inum)
	if err != nil {
		return Inode{}, err
	}
	b, err := d.Read(a.Blkno)
	if err != nil {
		return Inode{}, err
	}
	off := a.Byte()
	return DecodeInode(b[off : off+common.INODESZ])
}
