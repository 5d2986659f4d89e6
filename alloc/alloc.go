package alloc

import (
	"fmt"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/buf"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/jrnl"
	"github.com/mit-pdos/go-nufs/util"
)

// Alloc uses a bit map to allocate and free numbers. Bit 0 corresponds to
// number 0, bit 1 to 1, and so on; numbers below first are never handed out.
//
// The bitmap is a byte-aligned run of bits inside a single block and is only
// ever accessed through a jrnl.Op, so an allocation becomes visible when the
// operation commits.
type Alloc struct {
	name  string
	start addr.Addr // bit 0
	len   uint64    // number of bits
	first uint64    // first number to try
}

func MkAlloc(name string, start addr.Addr, len uint64, first uint64) *Alloc {
	if start.Off%8 != 0 || len%8 != 0 || start.Off+len > common.NBITBLOCK {
		panic("MkAlloc: bitmap must be byte-aligned within one block")
	}
	if first > len {
		panic("MkAlloc: first out of range")
	}
	a := &Alloc{
		name:  name,
		start: start,
		len:   len,
		first: first,
	}
	return a
}

func (a *Alloc) Len() uint64 {
	return a.len
}

func (a *Alloc) bitmap(op *jrnl.Op) *buf.Buf {
	return op.ReadBuf(a.start, a.len)
}

// bit loads the 1-bit object for n.
func (a *Alloc) bit(op *jrnl.Op, n uint64) *buf.Buf {
	return op.ReadBuf(addr.MkBitAddr(a.start.Blkno, a.start.Off, n), 1)
}

func (a *Alloc) checkNum(n uint64) {
	if n >= a.len {
		panic(fmt.Errorf("%s: number %d out of range", a.name, n))
	}
}

// AllocNum marks the lowest free number at or above first as used and returns
// it.
func (a *Alloc) AllocNum(op *jrnl.Op) (uint64, error) {
	b := a.bitmap(op)
	for byteIndex := a.first / 8; byteIndex < uint64(len(b.Data)); byteIndex++ {
		byteVal := b.Data[byteIndex]
		if byteVal == 0xff {
			continue
		}
		for bitIndex := uint64(0); bitIndex < 8; bitIndex++ {
			num := byteIndex*8 + bitIndex
			if num < a.first {
				continue
			}
			if byteVal&(1<<bitIndex) == 0 {
				b.Data[byteIndex] |= 1 << bitIndex
				b.SetDirty()
				util.DPrintf(5, "%s: alloc -> %d\n", a.name, num)
				return num, nil
			}
		}
	}
	util.DPrintf(5, "%s: alloc failed, bitmap full\n", a.name)
	return 0, fmt.Errorf("%s: %w", a.name, common.ErrNoSpace)
}

// FreeNum clears the bit for n.
func (a *Alloc) FreeNum(op *jrnl.Op, n uint64) {
	a.checkNum(n)
	if n < a.first {
		panic(fmt.Errorf("%s: freeing reserved number %d", a.name, n))
	}
	util.DPrintf(5, "%s: free %d\n", a.name, n)
	a.bit(op, n).BitPut(false)
}

// MarkUsed sets the bit for n, whether or not it was free.
func (a *Alloc) MarkUsed(op *jrnl.Op, n uint64) {
	a.checkNum(n)
	a.bit(op, n).BitPut(true)
}

func (a *Alloc) IsUsed(op *jrnl.Op, n uint64) bool {
	a.checkNum(n)
	return a.bit(op, n).BitGet()
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

// NumFree counts the free numbers that AllocNum could return.
func (a *Alloc) NumFree(op *jrnl.Op) uint64 {
	b := a.bitmap(op)
	var used uint64
	for _, v := range b.Data {
		used += popCnt(v)
	}
	var reservedFree uint64
	for n := uint64(0); n < a.first; n++ {
		if !a.IsUsed(op, n) {
			reservedFree++
		}
	}
	return a.len - used - reservedFree
}
