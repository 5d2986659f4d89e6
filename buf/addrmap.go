package buf

import (
	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/common"
)

//
// a map from (addr, size) to an object
//

type aentry struct {
	addr addr.Addr
	sz   uint64
	obj  interface{}
}

type AddrMap struct {
	addrs map[common.Bnum][]*aentry
}

func MkAddrMap() *AddrMap {
	a := &AddrMap{
		addrs: make(map[common.Bnum][]*aentry),
	}
	return a
}

func (amap *AddrMap) Lookup(a addr.Addr, sz uint64) interface{} {
	var obj interface{}
	entries, ok := amap.addrs[a.Blkno]
	if ok {
		for _, e := range entries {
			if e.addr == a && e.sz == sz {
				obj = e.obj
				break
			}
		}
	}
	return obj
}

func (amap *AddrMap) Insert(a addr.Addr, sz uint64, obj interface{}) {
	e := &aentry{addr: a, sz: sz, obj: obj}
	amap.addrs[a.Blkno] = append(amap.addrs[a.Blkno], e)
}

func (amap *AddrMap) Apply(f func(addr.Addr, interface{})) {
	for _, entries := range amap.addrs {
		for _, e := range entries {
			f(e.addr, e.obj)
		}
	}
}
