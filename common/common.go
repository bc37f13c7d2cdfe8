package common

const (
	// BlockSize is the size of every addressable unit of the image.
	BlockSize uint64 = 512

	NBITBLOCK uint64 = BlockSize * 8
	INODESZ   uint64 = 64 // on-disk size
	INODEBLK  uint64 = BlockSize / INODESZ

	// SuperblockLen is the logical (unpadded) size of the superblock record.
	SuperblockLen uint64 = 70

	Magic uint32 = 0xFEAB1E33

	VersionMajor uint8 = 1
	VersionMinor uint8 = 1

	// MaxBitmapBlocks bounds the in-memory bitmap buffer (1 MiB, enough
	// for 8M data blocks).
	MaxBitmapBlocks uint64 = 2048
)

// Default layout of a 10 MiB image:
//
//	block 0           superblock
//	block 1 - 127     inode table
//	block 128 - 132   block bitmap
//	block 133         inode bitmap
//	block 134 - 20613 data region
const (
	DefaultBlockCount uint64 = 20615

	DefaultInodeTableStart  Bnum   = 1
	DefaultInodeTableBlocks uint64 = 127
	DefaultBitmapStart      Bnum   = 128
	DefaultBitmapBlocks     uint64 = 5
	DefaultInodeBitmapStart Bnum   = 133
	DefaultInodeBitmapBlks  uint64 = 1
	DefaultDataStart        Bnum   = 134
	DefaultDataBlocks       uint64 = 20480
)

type Inum uint32
type Bnum = uint64

const (
	SUPERBLOCK Bnum = 0
	NULLBNUM   Bnum = 0
)
