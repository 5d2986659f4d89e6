package inode

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-nufs/alloc"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/jrnl"
	"github.com/mit-pdos/go-nufs/super"
	"github.com/mit-pdos/go-nufs/util"
)

// MaxFileSize is the largest size the block mapping can address.
const MaxFileSize uint64 = common.MAXBLKS * disk.BlockSize

func nblocks(size uint64) uint64 {
	return util.Max(1, util.RoundUp(size, disk.BlockSize))
}

// Table is the fixed-size inode table together with the block and inode
// bitmaps that back it.
type Table struct {
	fs     *super.FsSuper
	balloc *alloc.Alloc
	ialloc *alloc.Alloc
}

func MkTable(fs *super.FsSuper) *Table {
	return &Table{
		fs: fs,
		// block 0 holds the bitmaps and is never handed out
		balloc: alloc.MkAlloc("balloc", fs.BitmapBlockAddr(0), fs.NBlocks, 1),
		ialloc: alloc.MkAlloc("ialloc", fs.BitmapInodeAddr(0), fs.NInodes, 0),
	}
}

func (t *Table) Balloc() *alloc.Alloc {
	return t.balloc
}

func (t *Table) Ialloc() *alloc.Alloc {
	return t.ialloc
}

func (t *Table) IsLive(op *jrnl.Op, inum common.Inum) bool {
	return t.ialloc.IsUsed(op, uint64(inum))
}

func (t *Table) Get(op *jrnl.Op, inum common.Inum) *Inode {
	b := op.ReadBuf(t.fs.Inum2Addr(inum), common.INODESZ*8)
	return Decode(inum, b.Data)
}

func (t *Table) Put(op *jrnl.Op, ip *Inode) {
	op.OverWrite(t.fs.Inum2Addr(ip.Inum), common.INODESZ*8, ip.Encode())
}

// Alloc takes the lowest free inode number and gives it one data block for
// its first direct pointer.
func (t *Table) Alloc(op *jrnl.Op, mode uint32) (*Inode, error) {
	n, err := t.ialloc.AllocNum(op)
	if err != nil {
		return nil, err
	}
	bn, err := t.balloc.AllocNum(op)
	if err != nil {
		return nil, err
	}
	op.ZeroBlock(bn)
	ip := &Inode{
		Inum: common.Inum(n),
		Refs: 1,
		Mode: mode,
		Size: 0,
	}
	ip.Direct[0] = bn
	t.Put(op, ip)
	util.DPrintf(5, "inode alloc: %v\n", ip)
	return ip, nil
}

// Free releases every block the inode owns and its inode number.
func (t *Table) Free(op *jrnl.Op, ip *Inode) {
	if ip.Inum == common.ROOTINUM {
		panic("freeing the root inode")
	}
	util.DPrintf(5, "inode free: %v\n", ip)
	t.Shrink(op, ip, 0)
	t.balloc.FreeNum(op, ip.Direct[0])
	ip.Direct[0] = common.NULLBNUM
	ip.Refs = 0
	t.Put(op, ip)
	t.ialloc.FreeNum(op, uint64(ip.Inum))
}

func (t *Table) IncRef(op *jrnl.Op, ip *Inode) {
	ip.Refs++
	t.Put(op, ip)
}

// DecRef drops one link; the last one frees the inode.
func (t *Table) DecRef(op *jrnl.Op, ip *Inode) {
	if ip.Refs <= 1 {
		t.Free(op, ip)
		return
	}
	ip.Refs--
	t.Put(op, ip)
}

func (t *Table) allocZeroed(op *jrnl.Op) (common.Bnum, error) {
	bn, err := t.balloc.AllocNum(op)
	if err != nil {
		return 0, err
	}
	op.ZeroBlock(bn)
	return bn, nil
}

// Grow maps blocks up to newSize, appending at the high end of the logical
// block range. New blocks are zeroed. On error the inode and bitmaps in op
// are partially updated; the caller must not commit op.
func (t *Table) Grow(op *jrnl.Op, ip *Inode, newSize uint64) error {
	if newSize < uint64(ip.Size) {
		panic("Grow requires a larger size")
	}
	if newSize > MaxFileSize {
		return fmt.Errorf("size %d exceeds %d: %w", newSize, MaxFileSize, common.ErrInvalid)
	}
	for lblk := ip.NBlocks(); lblk < nblocks(newSize); lblk++ {
		if lblk < common.NDIRECT {
			bn, err := t.allocZeroed(op)
			if err != nil {
				return err
			}
			ip.Direct[lblk] = bn
			continue
		}
		if ip.Indirect == common.NULLBNUM {
			ind, err := t.allocZeroed(op)
			if err != nil {
				return err
			}
			ip.Indirect = ind
		}
		bn, err := t.allocZeroed(op)
		if err != nil {
			return err
		}
		op.ReadBlock(ip.Indirect).BnumPut((lblk-common.NDIRECT)*4, bn)
	}
	ip.Size = uint32(newSize)
	t.Put(op, ip)
	return nil
}

// Shrink unmaps blocks beyond newSize, highest first. The indirect block is
// released together with the first block it maps. The bytes past newSize in
// the last kept block are zeroed, so a later Grow exposes only zeros.
func (t *Table) Shrink(op *jrnl.Op, ip *Inode, newSize uint64) {
	if newSize > uint64(ip.Size) {
		panic("Shrink requires a smaller size")
	}
	for lblk := ip.NBlocks(); lblk > nblocks(newSize); lblk-- {
		i := lblk - 1
		if i < common.NDIRECT {
			t.balloc.FreeNum(op, ip.Direct[i])
			ip.Direct[i] = common.NULLBNUM
			continue
		}
		ind := op.ReadBlock(ip.Indirect)
		off := (i - common.NDIRECT) * 4
		t.balloc.FreeNum(op, ind.BnumGet(off))
		ind.BnumPut(off, common.NULLBNUM)
		if i == common.NDIRECT {
			t.balloc.FreeNum(op, ip.Indirect)
			ip.Indirect = common.NULLBNUM
		}
	}
	ip.Size = uint32(newSize)
	if newSize/disk.BlockSize < ip.NBlocks() {
		bn, err := t.Bmap(op, ip, newSize)
		if err != nil {
			panic(err)
		}
		b := op.ReadBlock(bn)
		tail := b.Data[newSize%disk.BlockSize:]
		for i := range tail {
			tail[i] = 0
		}
		b.SetDirty()
	}
	t.Put(op, ip)
}

// Resize grows or shrinks ip to newSize.
func (t *Table) Resize(op *jrnl.Op, ip *Inode, newSize uint64) error {
	if newSize < uint64(ip.Size) {
		t.Shrink(op, ip, newSize)
		return nil
	}
	return t.Grow(op, ip, newSize)
}

// Bmap translates a byte offset in ip to the block holding it.
func (t *Table) Bmap(op *jrnl.Op, ip *Inode, off uint64) (common.Bnum, error) {
	lblk := off / disk.BlockSize
	if lblk >= ip.NBlocks() {
		return 0, fmt.Errorf("inode %d: offset %d not mapped: %w",
			ip.Inum, off, common.ErrInvalid)
	}
	if lblk < common.NDIRECT {
		return ip.Direct[lblk], nil
	}
	return op.ReadBlock(ip.Indirect).BnumGet((lblk - common.NDIRECT) * 4), nil
}

// Blocks lists every block owned by ip, the indirect block included.
func (t *Table) Blocks(op *jrnl.Op, ip *Inode) []common.Bnum {
	var bns []common.Bnum
	for lblk := uint64(0); lblk < ip.NBlocks(); lblk++ {
		bn, err := t.Bmap(op, ip, lblk*disk.BlockSize)
		if err != nil {
			panic(err)
		}
		bns = append(bns, bn)
	}
	if ip.Indirect != common.NULLBNUM {
		bns = append(bns, ip.Indirect)
	}
	return bns
}

// Format marks block 0 and the inode table blocks allocated. The bitmaps are
// assumed clear.
func (t *Table) Format(op *jrnl.Op) {
	for bn := common.Bnum(0); bn < t.fs.DataStart(); bn++ {
		t.balloc.MarkUsed(op, bn)
	}
}
