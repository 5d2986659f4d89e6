// Package jrnl provides buffered operations over a block disk.
//
// The caller uses this interface by beginning an operation Op,
// reading/writing objects within it, and finally committing it. Reads load a
// private copy of each block on first use; writes go to those copies and are
// written to the disk together by CommitWait. An operation that fails part way
// is abandoned by simply not committing it, so none of its writes reach the
// disk.
//
// Objects have sizes. Implicit in the code is that there is a static "schema"
// that determines the disk layout: each block has objects of a particular size,
// and all sizes used fit an integer number of objects in a block (see package
// super). Loading the same address with two different sizes within one Op is a
// schema violation only when both are written.
//
// Commit is not crash-atomic: blocks are written back in increasing block
// order, and a crash in the middle of CommitWait can expose a prefix of them.
package jrnl

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/buf"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/util"
)

// Op is an in-progress operation.
//
// Call CommitWait to install the operation's writes.
// To abort the operation simply stop using it.
type Op struct {
	d    disk.Disk
	blks map[common.Bnum]disk.Block // cached copies, shared by all bufs of a block
	bufs *buf.BufMap                 // map of bufs read/written by this operation
}

// Begin starts an operation with no writes.
func Begin(d disk.Disk) *Op {
	op := &Op{
		d:    d,
		blks: make(map[common.Bnum]disk.Block),
		bufs: buf.MkBufMap(),
	}
	util.DPrintf(15, "Begin: %p\n", op)
	return op
}

func (op *Op) block(blkno common.Bnum) disk.Block {
	blk, ok := op.blks[blkno]
	if ok {
		return blk
	}
	if blkno >= op.d.Size() {
		panic(fmt.Errorf("out-of-bounds block %d", blkno))
	}
	blk = util.CloneByteSlice(op.d.Read(blkno))
	op.blks[blkno] = blk
	return blk
}

// ReadBuf loads the sz-bit object at addr.
//
// Repeated reads of the same object return the same buf.
func (op *Op) ReadBuf(a addr.Addr, sz uint64) *buf.Buf {
	b := op.bufs.Lookup(a, sz)
	if b == nil {
		b = buf.MkBufLoad(a, sz, op.block(a.Blkno))
		op.bufs.Insert(b)
	}
	return b
}

// ReadBlock loads a whole block.
func (op *Op) ReadBlock(blkno common.Bnum) *buf.Buf {
	return op.ReadBuf(addr.MkAddr(blkno, 0), common.NBITBLOCK)
}

// OverWrite writes an object to addr without reading it first
func (op *Op) OverWrite(a addr.Addr, sz uint64, data []byte) {
	op.ReadBuf(a, sz).Overwrite(data)
}

// ZeroBlock fills a block with zeros.
func (op *Op) ZeroBlock(blkno common.Bnum) {
	op.OverWrite(addr.MkAddr(blkno, 0), common.NBITBLOCK,
		make([]byte, disk.BlockSize))
}

// NDirty reports how many objects this operation has modified.
func (op *Op) NDirty() uint64 {
	return op.bufs.Ndirty()
}

// CommitWait writes the blocks modified by the operation to disk.
//
// wait=true issues a disk barrier afterwards, so the writes are durable when
// CommitWait returns.
func (op *Op) CommitWait(wait bool) {
	blknos := op.bufs.DirtyBlocks()
	if len(blknos) == 0 {
		util.DPrintf(15, "commit read-only op\n")
		return
	}
	util.DPrintf(10, "Commit %p: blocks %v w %v\n", op, blknos, wait)
	for _, bn := range blknos {
		op.d.Write(bn, op.blks[bn])
	}
	if wait {
		op.d.Barrier()
	}
	// the op stays usable; start over so a second commit writes only new changes
	op.blks = make(map[common.Bnum]disk.Block)
	op.bufs = buf.MkBufMap()
}
