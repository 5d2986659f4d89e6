// Package super describes the on-disk layout.
//
// Block 0 holds, in order, the block bitmap (one bit per block), the inode
// bitmap (one bit per inode) and the schema header. The inode table occupies
// whole blocks starting at block 1; data blocks follow it.
//
//	block 0: [ block bitmap | inode bitmap | header | unused ]
//	block 1..: [ inodes ] [ data blocks ... ]
package super

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/jrnl"
	"github.com/mit-pdos/go-nufs/util"
)

const (
	MAGIC   uint64 = 0x4e554653494d4731 // "NUFSIMG1"
	VERSION uint64 = 1

	HDROFF uint64 = 64 // byte offset of the header in block 0
	HDRSZ  uint64 = 64 // bytes
)

type FsSuper struct {
	Disk      disk.Disk
	UUID      uuid.UUID
	Version   uint64
	NBlocks   uint64
	NInodes   uint64
	nInodeBlk uint64
}

func checkSize(d disk.Disk) error {
	if d.Size() != common.NBLOCKS {
		return fmt.Errorf("disk has %d blocks, want %d: %w",
			d.Size(), common.NBLOCKS, common.ErrInvalid)
	}
	return nil
}

// MkFsSuper describes a fresh file system on d with a new UUID.
func MkFsSuper(d disk.Disk) (*FsSuper, error) {
	if err := checkSize(d); err != nil {
		return nil, err
	}
	return &FsSuper{
		Disk:      d,
		UUID:      uuid.New(),
		Version:   VERSION,
		NBlocks:   common.NBLOCKS,
		NInodes:   common.NINODES,
		nInodeBlk: util.RoundUp(common.NINODES*common.INODESZ, disk.BlockSize),
	}, nil
}

func hdrAddr() addr.Addr {
	return addr.MkAddr(0, HDROFF*8)
}

func encodeHeader(fs *FsSuper) []byte {
	enc := marshal.NewEnc(HDRSZ)
	enc.PutInt(MAGIC)
	enc.PutInt(fs.Version)
	enc.PutBytes(fs.UUID[:])
	enc.PutInt(fs.NBlocks)
	enc.PutInt(fs.NInodes)
	enc.PutInt(fs.InodeStart())
	enc.PutInt(fs.nInodeBlk)
	return enc.Finish()
}

// WriteHeader records the schema header in op.
func (fs *FsSuper) WriteHeader(op *jrnl.Op) {
	op.OverWrite(hdrAddr(), HDRSZ*8, encodeHeader(fs))
}

// ReadFsSuper loads the layout recorded on d. ok is false if d does not hold a
// file system (the header magic is absent).
func ReadFsSuper(d disk.Disk) (fs *FsSuper, ok bool, err error) {
	if err := checkSize(d); err != nil {
		return nil, false, err
	}
	op := jrnl.Begin(d)
	dec := marshal.NewDec(op.ReadBuf(hdrAddr(), HDRSZ*8).Data)
	if dec.GetInt() != MAGIC {
		return nil, false, nil
	}
	fs = &FsSuper{Disk: d}
	fs.Version = dec.GetInt()
	copy(fs.UUID[:], dec.GetBytes(16))
	fs.NBlocks = dec.GetInt()
	fs.NInodes = dec.GetInt()
	inodeStart := dec.GetInt()
	fs.nInodeBlk = dec.GetInt()
	if fs.Version != VERSION {
		return nil, false, fmt.Errorf("schema version %d, want %d: %w",
			fs.Version, VERSION, common.ErrInvalid)
	}
	if fs.NBlocks != common.NBLOCKS || fs.NInodes != common.NINODES ||
		inodeStart != fs.InodeStart() ||
		fs.nInodeBlk*disk.BlockSize < fs.NInodes*common.INODESZ {
		return nil, false, fmt.Errorf("inconsistent header %+v: %w", fs, common.ErrInvalid)
	}
	return fs, true, nil
}

// BitmapBlockAddr is the bit recording whether block bn is allocated.
func (fs *FsSuper) BitmapBlockAddr(bn common.Bnum) addr.Addr {
	return addr.MkBitAddr(0, 0, bn)
}

// BitmapInodeAddr is the bit recording whether inode inum is live.
func (fs *FsSuper) BitmapInodeAddr(inum common.Inum) addr.Addr {
	return addr.MkBitAddr(0, fs.NBlocks, uint64(inum))
}

func (fs *FsSuper) InodeStart() common.Bnum {
	return 1
}

func (fs *FsSuper) NInodeBlk() uint64 {
	return fs.nInodeBlk
}

func (fs *FsSuper) DataStart() common.Bnum {
	return fs.InodeStart() + fs.nInodeBlk
}

func (fs *FsSuper) Inum2Addr(inum common.Inum) addr.Addr {
	if uint64(inum) >= fs.NInodes {
		panic(fmt.Errorf("invalid inode number %d", inum))
	}
	return addr.MkAddr(fs.InodeStart()+common.Bnum(uint64(inum)/common.INODEBLK),
		(uint64(inum)%common.INODEBLK)*common.INODESZ*8)
}
