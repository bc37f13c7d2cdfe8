package alloc

import (
	"github.com/mit-pdos/go-floppy/util"
)

// Bitmap is a bit vector in on-disk order: bit n is bit n%8 of byte n/8,
// least significant bit first.
type Bitmap []byte

func (bm Bitmap) IsSet(n uint64) bool {
	return bm[n/8]&(1<<(n%8)) != 0
}

func (bm Bitmap) Set(n uint64) {
	bm[n/8] = bm[n/8] | (1 << (n % 8))
}

func (bm Bitmap) Clear(n uint64) {
	bm[n/8] = bm[n/8] & ^(1 << (n % 8))
}

// FirstZero returns the lowest clear bit below limit, scanning bytes in
// ascending order and bits 0 to 7 within each byte.
func (bm Bitmap) FirstZero(limit uint64) (uint64, bool) {
	nbytes := util.Min(util.RoundUp(limit, 8), uint64(len(bm)))
	for byt := uint64(0); byt < nbytes; byt++ {
		if bm[byt] == 0xff {
			continue
		}
		for bit := uint64(0); bit < 8; bit++ {
			n := byt*8 + bit
			if n >= limit {
				return 0, false
			}
			if bm[byt]&(1<<bit) == 0 {
				util.DPrintf(10, "FirstZero: byte %d bit %d (0x%x)\n", byt, bit, bm[byt])
				return n, true
			}
		}
	}
	return 0, false
}

// Count returns the number of set bits below limit.
func (bm Bitmap) Count(limit uint64) uint64 {
	var n uint64
	full := util.Min(limit/8, uint64(len(bm)))
	for _, b := range bm[:full] {
		n += popCnt(b)
	}
	for i := full * 8; i < limit && i/8 < uint64(len(bm)); i++ {
		if bm.IsSet(i) {
			n++
		}
	}
	return n
}

func popCnt(b byte) uint64 {
	var count uint64
	var x = b
	for i := uint64(0); i < 8; i++ {
		count += uint64(x & 1)
		x = x >> 1
	}
	return count
}
