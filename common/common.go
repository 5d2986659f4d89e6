package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	NBITBLOCK uint64 = disk.BlockSize * 8
	NBLOCKS   uint64 = 256
	NINODES   uint64 = 256

	INODESZ  uint64 = 32 // on-disk size
	INODEBLK uint64 = disk.BlockSize / INODESZ

	NDIRECT   uint64 = 2
	NINDIRECT uint64 = disk.BlockSize / 4
	MAXBLKS   uint64 = NDIRECT + NINDIRECT

	DIRNAMELEN uint64 = 48
	DIRENTSZ   uint64 = 64 // on-disk size
	DIRENTBLK  uint64 = disk.BlockSize / DIRENTSZ
)

type Inum uint64
type Bnum = uint64

const (
	ROOTINUM Inum = 0
	NULLBNUM Bnum = 0
)
