package image

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-floppy/alloc"
	"github.com/mit-pdos/go-floppy/common"
	"github.com/mit-pdos/go-floppy/disk"
	"github.com/mit-pdos/go-floppy/layout"
	"github.com/mit-pdos/go-floppy/session"
)

func imagePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "floppy.disk")
}

func TestInitWriteMountRead(t *testing.T) {
	path := imagePath(t)
	require.NoError(t, InitEmptyDisk(path, common.DefaultBlockCount))
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(20615*512), st.Size())

	require.NoError(t, WriteSuperblock(path, layout.Default()))

	s, err := session.Mount(path)
	require.NoError(t, err)
	assert.Equal(t, layout.Superblock{
		InodeTableBlockCount:  127,
		InodeTableBlockStart:  1,
		BlockBitmapBlockStart: 128,
		BlockBitmapBlockCount: 5,
		InodeBitmapBlockStart: 133,
		InodeBitmapBlockCount: 1,
		DataRegionBlockStart:  134,
		DataRegionBlockCount:  20480,
		Magic:                 0xFEAB1E33,
		VersionMajor:          1,
		VersionMinor:          1,
	},
		*s.Superblock())
	require.NoError(t, s.Unmount())

	sb, err := ReadSuperblock(path)
	require.NoError(t, err)
	assert.Equal(t, layout.Default(), sb)
}

func TestMountZeroMagic(t *testing.T) {
	path := imagePath(t)
	require.NoError(t, InitEmptyDisk(path, common.DefaultBlockCount))

	s, err := session.Mount(path)
	assert.Nil(t, s)
	var ce *layout.CorruptionError
	assert.True(t, errors.As(err, &ce), "got %v", err)

	assert.True(t, errors.As(CheckMount(path), &ce))
	_, err = ReadSuperblock(path)
	assert.True(t, errors.As(err, &ce))
}

func TestDumpBlockBounds(t *testing.T) {
	path := imagePath(t)
	require.NoError(t, Format(path))

	b, err := DumpBlock(path, 0)
	require.NoError(t, err)
	sb := layout.Default()
	assert.Equal(t, layout.Encode(&sb), b)

	_, err = DumpBlock(path, common.DefaultBlockCount-1)
	assert.NoError(t, err)

	_, err = DumpBlock(path, common.DefaultBlockCount)
	var be *disk.BoundsError
	assert.True(t, errors.As(err, &be), "got %v", err)
}

func TestAllocateBlock(t *testing.T) {
	path := imagePath(t)
	require.NoError(t, Format(path))

	for i := uint64(0); i < 10; i++ {
		bn, err := AllocateBlock(path)
		require.NoError(t, err)
		assert.Equal(t, common.DefaultDataStart+i, bn)
	}

	b, err := DumpBlock(path, common.DefaultBitmapStart)
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), b[0])
	assert.Equal(t, byte(0x03), b[1])
	assert.NoError(t, CheckMount(path))
}

func TestAllocateBlockExhausted(t *testing.T) {
	path := imagePath(t)
	require.NoError(t, InitEmptyDisk(path, 8))
	sb := layout.Superblock{
		BlockBitmapBlockStart: 1,
		BlockBitmapBlockCount: 1,
		DataRegionBlockStart:  2,
		DataRegionBlockCount:  2,
		Magic:                 common.Magic,
	}
	require.NoError(t, WriteSuperblock(path, sb))

	_, err := AllocateBlock(path)
	assert.NoError(t, err)
	_, err = AllocateBlock(path)
	assert.NoError(t, err)
	_, err = AllocateBlock(path)
	assert.True(t, errors.Is(err, alloc.ErrExhausted), "got %v", err)
}

var errClose = errors.New("close failed")

type closeFailDisk struct {
	*disk.MemDisk
}

func (d closeFailDisk) Close() error {
	return errClose
}

func mountTiny(t *testing.T, full bool) *session.Session {
	d := closeFailDisk{disk.NewMemDisk(4)}
	sb := layout.Superblock{
		BlockBitmapBlockStart: 1,
		BlockBitmapBlockCount: 1,
		DataRegionBlockStart:  2,
		DataRegionBlockCount:  2,
		Magic:                 common.Magic,
	}
	require.NoError(t, d.Write(common.SUPERBLOCK, layout.Encode(&sb)))
	if full {
		bitmap := disk.NewBlock()
		bitmap[0] = 0x03
		require.NoError(t, d.Write(1, bitmap))
	}
	s, err := session.MountDisk(d)
	require.NoError(t, err)
	return s
}

func TestAllocateUnmountFailure(t *testing.T) {
	s := mountTiny(t, true)
	_, err := allocateAndUnmount(s)
	assert.True(t, errors.Is(err, alloc.ErrExhausted), "got %v", err)
	assert.Contains(t, err.Error(), errClose.Error(), "unmount failure is reported")
	assert.False(t, s.Mounted())

	s = mountTiny(t, false)
	bn, err := allocateAndUnmount(s)
	assert.Equal(t, uint64(2), bn, "allocation is returned with the unmount error")
	var ce *session.CloseError
	assert.True(t, errors.As(err, &ce), "got %v", err)
}

func TestReadInode(t *testing.T) {
	path := imagePath(t)
	require.NoError(t, Format(path))

	ip, err := ReadInode(path, 0)
	require.NoError(t, err)
	assert.Equal(t, layout.Inode{}, ip, "formatted inode table is zeroed")

	_, err = ReadInode(path, 127*8)
	assert.Error(t, err, "past the inode table")

	require.NoError(t, InitEmptyDisk(path, 10))
	_, err = ReadInode(path, 0)
	var ce *layout.CorruptionError
	assert.True(t, errors.As(err, &ce), "got %v", err)
}

func TestWriteSuperblockRejectsBadLayout(t *testing.T) {
	path := imagePath(t)
	require.NoError(t, InitEmptyDisk(path, 100))
	err := WriteSuperblock(path, layout.Default())
	var ce *layout.CorruptionError
	assert.True(t, errors.As(err, &ce), "default layout does not fit 100 blocks: %v", err)

	b, err := DumpBlock(path, 0)
	require.NoError(t, err)
	assert.Equal(t, disk.NewBlock(), b, "nothing written")
}

func TestMissingImage(t *testing.T) {
	path := imagePath(t)
	var ie *disk.IOError
	assert.True(t, errors.As(WriteSuperblock(path, layout.Default()), &ie))
	_, err := DumpBlock(path, 0)
	assert.True(t, errors.As(err, &ie))
	_, err = AllocateBlock(path)
	assert.True(t, errors.As(err, &ie))
}
