package buf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/common"
)

func TestBitPut(t *testing.T) {
	blk := make(disk.Block, disk.BlockSize)
	b := MkBufLoad(addr.MkAddr(0, 12), 1, blk)
	assert.False(t, b.BitGet())
	b.BitPut(true)
	assert.True(t, b.BitGet())
	assert.Equal(t, byte(0x10), blk[1])
	assert.True(t, b.IsDirty())

	b.BitPut(false)
	assert.Equal(t, byte(0x0), blk[1])
}

func TestLoadAliasesBlock(t *testing.T) {
	blk := make(disk.Block, disk.BlockSize)
	b := MkBufLoad(addr.MkAddr(0, 64*8), 32*8, blk)
	assert.Equal(t, 32, len(b.Data))
	b.Overwrite([]byte("0123456789abcdef0123456789abcdef"))
	assert.Equal(t, []byte("0123"), blk[64:68])
}

func TestBnum(t *testing.T) {
	blk := make(disk.Block, disk.BlockSize)
	b := MkBufLoad(addr.MkAddr(7, 0), common.NBITBLOCK, blk)
	b.BnumPut(8, 255)
	assert.Equal(t, common.Bnum(255), b.BnumGet(8))
	assert.Equal(t, byte(255), blk[8], "little endian")
	assert.Equal(t, common.Bnum(0), b.BnumGet(4))
}

func TestBufMap(t *testing.T) {
	assert := assert.New(t)
	blk := make(disk.Block, disk.BlockSize)
	bmap := MkBufMap()
	b1 := MkBufLoad(addr.MkAddr(3, 0), 8, blk)
	b2 := MkBufLoad(addr.MkAddr(1, 0), 1, blk)
	bmap.Insert(b1)
	bmap.Insert(b2)
	assert.Equal(b1, bmap.Lookup(addr.MkAddr(3, 0), 8))
	assert.Nil(bmap.Lookup(addr.MkAddr(3, 0), 1), "size is part of the key")
	assert.Equal(uint64(0), bmap.Ndirty())

	b1.SetDirty()
	b2.SetDirty()
	assert.Equal(uint64(2), bmap.Ndirty())
	assert.Equal([]common.Bnum{1, 3}, bmap.DirtyBlocks())
}
