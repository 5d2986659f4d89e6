package addr

import (
	"github.com/mit-pdos/go-nufs/common"
)

// Addr identifies the start of a disk object.
//
// Blkno is the block number containing the object, and Off is the location of
// the object within the block (expressed as a bit offset). The size of the
// object is determined by the context in which Addr is used.
type Addr struct {
	Blkno common.Bnum
	Off   uint64 // offset in bits
}

func (a Addr) ByteOff() uint64 {
	return a.Off / 8
}

func MkAddr(blkno common.Bnum, off uint64) Addr {
	return Addr{Blkno: blkno, Off: off}
}

// MkBitAddr names bit n of a bitmap that starts at bit base of block start.
func MkBitAddr(start common.Bnum, base uint64, n uint64) Addr {
	flat := base + n
	return MkAddr(start+common.Bnum(flat/common.NBITBLOCK), flat%common.NBITBLOCK)
}
