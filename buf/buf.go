// buf manages sub-block disk objects (an inode, a bitmap bit, a directory
// entry or a whole block) that are packed into disk blocks.
package buf

import (
	"github.com/tchajed/goose/machine"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/util"
)

// A Buf is a view of a disk object inside a cached copy of its block.
//
// Data aliases the block, so updates through Data are visible to every other
// Buf loaded from the same block. SetDirty records that the block must be
// written back.
type Buf struct {
	Addr  addr.Addr
	Sz    uint64 // number of bits
	Data  []byte
	dirty bool // has this object been written to?
}

// Load the bits of a disk block into a new buf, as specified by addr
func MkBufLoad(addr addr.Addr, sz uint64, blk disk.Block) *Buf {
	if addr.Off+sz > common.NBITBLOCK {
		panic("MkBufLoad: object crosses block boundary")
	}
	if sz != 1 && (sz%8 != 0 || addr.Off%8 != 0) {
		panic("MkBufLoad: unaligned object")
	}
	bytefirst := addr.ByteOff()
	bytelast := (addr.Off + sz - 1) / 8
	data := blk[bytefirst : bytelast+1]
	b := &Buf{
		Addr:  addr,
		Sz:    sz,
		Data:  data,
		dirty: false,
	}
	return b
}

func (buf *Buf) IsDirty() bool {
	return buf.dirty
}

func (buf *Buf) SetDirty() {
	buf.dirty = true
}

// BitGet reports the value of a 1-bit buf.
func (buf *Buf) BitGet() bool {
	if buf.Sz != 1 {
		panic("BitGet")
	}
	bit := buf.Addr.Off % 8
	return buf.Data[0]&(1<<bit) != 0
}

// BitPut sets or clears the bit of a 1-bit buf.
func (buf *Buf) BitPut(v bool) {
	if buf.Sz != 1 {
		panic("BitPut")
	}
	bit := buf.Addr.Off % 8
	if v {
		buf.Data[0] = buf.Data[0] | (1 << bit)
	} else {
		buf.Data[0] = buf.Data[0] & ^(1 << bit)
	}
	util.DPrintf(10, "%v: bit -> %v\n", buf.Addr, v)
	buf.SetDirty()
}

// Overwrite replaces the contents of the object with data.
func (buf *Buf) Overwrite(data []byte) {
	if uint64(len(data))*8 != buf.Sz {
		panic("Overwrite: size mismatch")
	}
	copy(buf.Data, data)
	buf.SetDirty()
}

// BnumGet reads the 32-bit block number stored at byte offset off.
func (buf *Buf) BnumGet(off uint64) common.Bnum {
	return common.Bnum(machine.UInt32Get(buf.Data[off : off+4]))
}

// BnumPut stores a 32-bit block number at byte offset off.
func (buf *Buf) BnumPut(off uint64, v common.Bnum) {
	machine.UInt32Put(buf.Data[off:off+4], uint32(v))
	buf.SetDirty()
}
