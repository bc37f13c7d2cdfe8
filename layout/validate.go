package layout

import (
	"fmt"
	"sort"

	"github.com/mit-pdos/go-floppy/common"
	"github.com/mit-pdos/go-floppy/util"
)

// CorruptionError reports a superblock that cannot describe a usable image.
type CorruptionError struct {
	Reason string
}

func (e *CorruptionError) Error() string {
	return "corrupt superblock: " + e.Reason
}

func corruptf(format string, a ...interface{}) *CorruptionError {
	return &CorruptionError{Reason: fmt.Sprintf(format, a...)}
}

type region struct {
	name  string
	start uint64
	count uint64
}

func (sb *Superblock) regions() []region {
	return []region{
		{"inode table", sb.InodeTableBlockStart, sb.InodeTableBlockCount},
		{"block bitmap", sb.BlockBitmapBlockStart, sb.BlockBitmapBlockCount},
		{"inode bitmap", sb.InodeBitmapBlockStart, sb.InodeBitmapBlockCount},
		{"data region", sb.DataRegionBlockStart, sb.DataRegionBlockCount},
	}
}

// Validate checks the cross-field invariants of sb against a disk of
// diskBlocks blocks. Violations are reported as *CorruptionError.
func (sb *Superblock) Validate(diskBlocks uint64) error {
	if sb.Magic != common.Magic {
		return corruptf("magic number mismatch: %#08x", sb.Magic)
	}
	if sb.BlockBitmapBlockCount == 0 {
		return corruptf("empty block bitmap")
	}
	if sb.DataRegionBlockCount == 0 {
		return corruptf("empty data region")
	}
	if sb.BlockBitmapBlockCount > common.MaxBitmapBlocks {
		return corruptf("block bitmap has %d blocks, limit is %d",
			sb.BlockBitmapBlockCount, common.MaxBitmapBlocks)
	}
	if sb.BitmapBits() < sb.DataRegionBlockCount {
		return corruptf("block bitmap covers %d blocks, data region has %d",
			sb.BitmapBits(), sb.DataRegionBlockCount)
	}

	var used []region
	for _, r := range sb.regions() {
		if r.count == 0 {
			continue
		}
		if r.start == common.SUPERBLOCK {
			return corruptf("%s overlaps the superblock", r.name)
		}
		if util.SumOverflows(r.start, r.count) || r.start+r.count > diskBlocks {
			return corruptf("%s [%d, +%d) extends past the end of the disk (%d blocks)",
				r.name, r.start, r.count, diskBlocks)
		}
		used = append(used, r)
	}
	sort.Slice(used, func(i, j int) bool { return used[i].start < used[j].start })
	for i := 1; i < len(used); i++ {
		prev := used[i-1]
		if prev.start+prev.count > used[i].start {
			return corruptf("%s overlaps %s", prev.name, used[i].name)
		}
	}
	return nil
}
