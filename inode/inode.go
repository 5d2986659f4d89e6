package inode

import (
	"fmt"

	"github.com/tchajed/marshal"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-nufs/common"
)

// Inode is the in-memory copy of an inode record.
//
// On disk (INODESZ bytes, little endian):
//
//	refs u32 | mode u32 | size u32 | direct[2] u32 | indirect u32 | mtime u32 | atime u32
type Inode struct {
	Inum     common.Inum
	Refs     uint32
	Mode     uint32
	Size     uint32
	Direct   [common.NDIRECT]common.Bnum
	Indirect common.Bnum // 0 if unset
	Mtime    uint32
	Atime    uint32
}

func (ip *Inode) Encode() []byte {
	enc := marshal.NewEnc(common.INODESZ)
	enc.PutInt32(ip.Refs)
	enc.PutInt32(ip.Mode)
	enc.PutInt32(ip.Size)
	for _, bn := range ip.Direct {
		enc.PutInt32(uint32(bn))
	}
	enc.PutInt32(uint32(ip.Indirect))
	enc.PutInt32(ip.Mtime)
	enc.PutInt32(ip.Atime)
	return enc.Finish()
}

func Decode(inum common.Inum, d []byte) *Inode {
	if uint64(len(d)) != common.INODESZ {
		panic("Decode: not an inode record")
	}
	dec := marshal.NewDec(d)
	ip := &Inode{Inum: inum}
	ip.Refs = dec.GetInt32()
	ip.Mode = dec.GetInt32()
	ip.Size = dec.GetInt32()
	for i := range ip.Direct {
		ip.Direct[i] = common.Bnum(dec.GetInt32())
	}
	ip.Indirect = common.Bnum(dec.GetInt32())
	ip.Mtime = dec.GetInt32()
	ip.Atime = dec.GetInt32()
	return ip
}

func (ip *Inode) IsDir() bool {
	return ip.Mode&unix.S_IFMT == unix.S_IFDIR
}

// NBlocks is the number of blocks the inode maps. The first direct block is
// allocated with the inode, so even an empty inode maps one block.
func (ip *Inode) NBlocks() uint64 {
	return nblocks(uint64(ip.Size))
}

func (ip *Inode) String() string {
	return fmt.Sprintf("inode %d: refs %d mode %#o size %d direct %v indirect %d",
		ip.Inum, ip.Refs, ip.Mode, ip.Size, ip.Direct, ip.Indirect)
}
