// Package session owns the lifecycle of a mounted disk image.
//
// A Session is obtained only through Mount (or MountDisk). It holds the
// open disk and the one writable in-memory copy of the superblock; the
// superblock reaches block 0 again only when the session is unmounted.
// Nothing guards against two sessions on the same image: callers must
// mount a given path at most once at a time.
package session

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-floppy/common"
	"github.com/mit-pdos/go-floppy/disk"
	"github.com/mit-pdos/go-floppy/layout"
	"github.com/mit-pdos/go-floppy/util"
)

var ErrUnmounted = errors.New("session is unmounted")

// FlushError reports a failure to write the superblock back during
// Unmount. The disk was closed anyway; CloseErr records whether that
// failed too.
type FlushError struct {
	Err      error
	CloseErr error
}

func (e *FlushError) Error() string {
	if e.CloseErr != nil {
		return fmt.Sprintf("flushing superblock: %v (close: %v)", e.Err, e.CloseErr)
	}
	return fmt.Sprintf("flushing superblock: %v", e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// CloseError reports a failure to close the disk after the superblock was
// flushed successfully.
type CloseError struct {
	Err error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("closing disk: %v", e.Err)
}

func (e *CloseError) Unwrap() error {
	return e.Err
}

type Session struct {
	d  disk.Disk
	sb layout.Superblock
}

// Mount opens the image at path and loads its superblock.
func Mount(path string) (*Session, error) {
	d, err := disk.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", path, err)
	}
	s, err := mountOrClose(d)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", path, err)
	}
	return s, nil
}

// mountOrClose mounts d and closes it if the mount fails. A failed close is
// reported alongside the mount error.
func mountOrClose(d disk.Disk) (*Session, error) {
	s, err := MountDisk(d)
	if err == nil {
		return s, nil
	}
	if cerr := d.Close(); cerr != nil {
		util.DPrintf(1, "mount: close after failure: %v\n", cerr)
		return nil, fmt.Errorf("%w (close: %v)", err, cerr)
	}
	return nil, err
}

// MountDisk loads the superblock of an already open disk. On success the
// session takes ownership of d; on failure the caller keeps it.
func MountDisk(d disk.Disk) (*Session, error) {
	blk, err := d.Read(common.SUPERBLOCK)
	if err != nil {
		return nil, err
	}
	sb, err := layout.Decode(blk)
	if err != nil {
		return nil, err
	}
	sz, err := d.Size()
	if err != nil {
		return nil, err
	}
	if err := sb.Validate(sz); err != nil {
		return nil, err
	}
	util.DPrintf(1, "mount: %d blocks, data region [%d, %d)\n",
		sz, sb.DataRegionBlockStart, sb.DataBlockEnd())
	return &Session{d: d, sb: sb}, nil
}

// Superblock returns the cached superblock. Changes made through it are
// written to disk by Unmount.
func (s *Session) Superblock() *layout.Superblock {
	return &s.sb
}

// Disk returns the disk owned by the session, or nil once unmounted.
func (s *Session) Disk() disk.Disk {
	return s.d
}

func (s *Session) Mounted() bool {
	return s.d != nil
}

func (s *Session) flush(d disk.Disk) error {
	if err := d.Write(common.SUPERBLOCK, layout.Encode(&s.sb)); err != nil {
		return err
	}
	return d.Barrier()
}

// Unmount writes the cached superblock to block 0 and closes the disk. The
// disk is closed even if the flush fails. The session cannot be used
// afterwards, whatever the outcome.
func (s *Session) Unmount() error {
	if s.d == nil {
		return ErrUnmounted
	}
	d := s.d
	s.d = nil

	flushErr := s.flush(d)
	closeErr := d.Close()
	if flushErr != nil {
		util.DPrintf(1, "unmount: flush failed: %v\n", flushErr)
		return &FlushError{Err: flushErr, CloseErr: closeErr}
	}
	if closeErr != nil {
		return &CloseError{Err: closeErr}
	}
	util.DPrintf(1, "unmount: superblock flushed\n")
	return nil
}
