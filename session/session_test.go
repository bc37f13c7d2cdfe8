package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mit-pdos/go-floppy/common"
	"github.com/mit-pdos/go-floppy/disk"
	"github.com/mit-pdos/go-floppy/layout"
)

var errInjected = errors.New("injected failure")

// faultyDisk fails writes to block 0 or Close on request and counts closes.
type faultyDisk struct {
	*disk.MemDisk
	failFlush bool
	failClose bool
	closes    int
}

func (d *faultyDisk) Write(a uint64, v disk.Block) error {
	if d.failFlush && a == common.SUPERBLOCK {
		return errInjected
	}
	return d.MemDisk.Write(a, v)
}

func (d *faultyDisk) Close() error {
	d.closes++
	if d.failClose {
		return errInjected
	}
	return nil
}

func formatted(numBlocks uint64, sb layout.Superblock) *faultyDisk {
	d := &faultyDisk{MemDisk: disk.NewMemDisk(numBlocks)}
	d.MemDisk.Write(common.SUPERBLOCK, layout.Encode(&sb))
	return d
}

type SessionSuite struct {
	suite.Suite
	d *faultyDisk
}

func (suite *SessionSuite) SetupTest() {
	suite.d = formatted(common.DefaultBlockCount, layout.Default())
}

func TestSession(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (suite *SessionSuite) readSuperblock() layout.Superblock {
	b, err := suite.d.MemDisk.Read(common.SUPERBLOCK)
	suite.Require().NoError(err)
	sb, err := layout.Decode(b)
	suite.Require().NoError(err)
	return sb
}

func (suite *SessionSuite) TestMount() {
	s, err := MountDisk(suite.d)
	suite.Require().NoError(err)
	suite.True(s.Mounted())
	suite.Equal(layout.Default(), *s.Superblock())
	suite.Equal(disk.Disk(suite.d), s.Disk())
	suite.NoError(s.Unmount())
	suite.Equal(1, suite.d.closes)
}

func (suite *SessionSuite) TestMountBadMagic() {
	sb := layout.Default()
	sb.Magic = 0
	d := formatted(common.DefaultBlockCount, sb)
	s, err := MountDisk(d)
	suite.Nil(s, "no session on corruption")
	var ce *layout.CorruptionError
	suite.True(errors.As(err, &ce), "got %v", err)
}

func (suite *SessionSuite) TestMountInvalidLayout() {
	d := formatted(1000, layout.Default())
	s, err := MountDisk(d)
	suite.Nil(s)
	var ce *layout.CorruptionError
	suite.True(errors.As(err, &ce), "layout larger than the disk: %v", err)
}

func (suite *SessionSuite) TestMountFailureCloses() {
	sb := layout.Default()
	sb.Magic = 0
	d := formatted(common.DefaultBlockCount, sb)
	_, err := mountOrClose(d)
	var ce *layout.CorruptionError
	suite.True(errors.As(err, &ce), "got %v", err)
	suite.Equal(1, d.closes)

	d = formatted(common.DefaultBlockCount, sb)
	d.failClose = true
	_, err = mountOrClose(d)
	suite.True(errors.As(err, &ce), "mount error is kept: %v", err)
	suite.Contains(err.Error(), errInjected.Error(), "close error is reported")
	suite.Equal(1, d.closes)
}

func (suite *SessionSuite) TestMountEmptyDisk() {
	_, err := MountDisk(disk.NewMemDisk(0))
	var be *disk.BoundsError
	suite.True(errors.As(err, &be), "got %v", err)
}

func (suite *SessionSuite) TestUnmountFlushes() {
	s, err := MountDisk(suite.d)
	suite.Require().NoError(err)
	s.Superblock().VersionMinor = 7
	s.Superblock().InodeBitmapBlockCount = 0

	suite.Equal(uint8(1), suite.readSuperblock().VersionMinor,
		"changes stay in memory until unmount")

	suite.NoError(s.Unmount())
	sb := suite.readSuperblock()
	suite.Equal(uint8(7), sb.VersionMinor)
	suite.Equal(uint64(0), sb.InodeBitmapBlockCount)
}

func (suite *SessionSuite) TestUnmountTwice() {
	s, err := MountDisk(suite.d)
	suite.Require().NoError(err)
	suite.NoError(s.Unmount())
	suite.False(s.Mounted())
	suite.Nil(s.Disk())
	suite.Equal(ErrUnmounted, s.Unmount())
	suite.Equal(1, suite.d.closes, "released exactly once")
}

func (suite *SessionSuite) TestFlushError() {
	s, err := MountDisk(suite.d)
	suite.Require().NoError(err)
	suite.d.failFlush = true

	err = s.Unmount()
	var fe *FlushError
	suite.Require().True(errors.As(err, &fe), "got %v", err)
	suite.True(errors.Is(err, errInjected))
	suite.Nil(fe.CloseErr)
	suite.Equal(1, suite.d.closes, "close attempted after failed flush")
	suite.False(s.Mounted())
}

func (suite *SessionSuite) TestFlushAndCloseError() {
	s, err := MountDisk(suite.d)
	suite.Require().NoError(err)
	suite.d.failFlush = true
	suite.d.failClose = true

	var fe *FlushError
	suite.Require().True(errors.As(s.Unmount(), &fe))
	suite.Equal(errInjected, fe.CloseErr)
}

func (suite *SessionSuite) TestCloseError() {
	s, err := MountDisk(suite.d)
	suite.Require().NoError(err)
	s.Superblock().VersionMajor = 2
	suite.d.failClose = true

	err = s.Unmount()
	var ce *CloseError
	suite.True(errors.As(err, &ce), "got %v", err)
	var fe *FlushError
	suite.False(errors.As(err, &fe), "close failure is not a flush failure")
	suite.Equal(uint8(2), suite.readSuperblock().VersionMajor, "flush was durable")
}

func TestMountFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floppy.disk")
	if err := disk.CreateZeroed(path, 200); err != nil {
		t.Fatal(err)
	}
	_, err := Mount(path)
	var ce *layout.CorruptionError
	if !errors.As(err, &ce) {
		t.Fatalf("mounting a zeroed image: expected CorruptionError, got %v", err)
	}

	_, err = Mount(filepath.Join(t.TempDir(), "missing.disk"))
	var ie *disk.IOError
	if !errors.As(err, &ie) {
		t.Fatalf("mounting a missing image: expected IOError, got %v", err)
	}
}
