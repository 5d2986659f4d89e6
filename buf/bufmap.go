package buf

import (
	"golang.org/x/exp/slices"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/common"
)

//
// A map from Addr's to bufs.
//

type BufMap struct {
	addrs *AddrMap
}

func MkBufMap() *BufMap {
	a := &BufMap{
		addrs: MkAddrMap(),
	}
	return a
}

func (bmap *BufMap) Insert(buf *Buf) {
	bmap.addrs.Insert(buf.Addr, buf.Sz, buf)
}

func (bmap *BufMap) Lookup(a addr.Addr, sz uint64) *Buf {
	e := bmap.addrs.Lookup(a, sz)
	if e != nil {
		return e.(*Buf)
	}
	return nil
}

func (bmap *BufMap) Ndirty() uint64 {
	n := uint64(0)
	bmap.addrs.Apply(func(a addr.Addr, e interface{}) {
		buf := e.(*Buf)
		if buf.IsDirty() {
			n += 1
		}
	})
	return n
}

// DirtyBlocks returns, in increasing order, the blocks holding a dirty buf.
func (bmap *BufMap) DirtyBlocks() []common.Bnum {
	seen := make(map[common.Bnum]bool)
	bmap.addrs.Apply(func(a addr.Addr, e interface{}) {
		if e.(*Buf).IsDirty() {
			seen[a.Blkno] = true
		}
	})
	blknos := make([]common.Bnum, 0, len(seen))
	for bn := range seen {
		blknos = append(blknos, bn)
	}
	slices.Sort(blknos)
	return blknos
}
