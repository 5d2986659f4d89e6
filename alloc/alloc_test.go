package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/jrnl"
)

func TestPopCnt(t *testing.T) {
	assert.Equal(t, uint64(0), popCnt(0))
	assert.Equal(t, uint64(1), popCnt(1))
	assert.Equal(t, uint64(1), popCnt(2))
	assert.Equal(t, uint64(2), popCnt(3))
	assert.Equal(t, uint64(8), popCnt(255))
}

func mkOp() *jrnl.Op {
	return jrnl.Begin(disk.NewMemDisk(4))
}

func TestAlloc(t *testing.T) {
	assert := assert.New(t)
	op := mkOp()
	max := uint64(32)
	a := MkAlloc("test", addr.MkAddr(1, 64), max, 1)

	assert.Equal(max-1, a.NumFree(op), "everything (but 0) should be initially free")

	n, err := a.AllocNum(op)
	require.NoError(t, err)
	assert.Equal(uint64(1), n, "first fit skips 0")
	assert.True(a.IsUsed(op, n))

	a.MarkUsed(op, n+1)
	n2, err := a.AllocNum(op)
	require.NoError(t, err)
	assert.Equal(n+2, n2, "should not allocate something marked used")

	assert.Equal(max-4, a.NumFree(op), "should have used 3 items plus 0")

	a.FreeNum(op, n)
	a.FreeNum(op, n2)
	assert.False(a.IsUsed(op, n))
	assert.Equal(max-2, a.NumFree(op), "should have freed")
}

func TestFirstFit(t *testing.T) {
	op := mkOp()
	a := MkAlloc("test", addr.MkAddr(0, 0), 64, 0)
	for i := uint64(0); i < 20; i++ {
		n, err := a.AllocNum(op)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	a.FreeNum(op, 13)
	a.FreeNum(op, 4)
	n, _ := a.AllocNum(op)
	assert.Equal(t, uint64(4), n, "lowest free number first")
	n, _ = a.AllocNum(op)
	assert.Equal(t, uint64(13), n)
	n, _ = a.AllocNum(op)
	assert.Equal(t, uint64(20), n)
}

func TestAllocAll(t *testing.T) {
	op := mkOp()
	a := MkAlloc("test", addr.MkAddr(0, 256), 256, 1)
	seen := make(map[uint64]bool)
	for i := 0; i < 255; i++ {
		n, err := a.AllocNum(op)
		require.NoError(t, err)
		assert.False(t, seen[n], "allocated %d twice", n)
		seen[n] = true
	}
	_, err := a.AllocNum(op)
	assert.ErrorIs(t, err, common.ErrNoSpace)
	assert.Equal(t, uint64(0), a.NumFree(op))
	assert.False(t, a.IsUsed(op, 0), "reserved number untouched")
}

func TestCommitted(t *testing.T) {
	d := disk.NewMemDisk(4)
	a := MkAlloc("test", addr.MkAddr(0, 0), 256, 1)

	op := jrnl.Begin(d)
	n, err := a.AllocNum(op)
	require.NoError(t, err)
	op.CommitWait(true)

	op = jrnl.Begin(d)
	assert.True(t, a.IsUsed(op, n))
	n2, _ := a.AllocNum(op)
	assert.NotEqual(t, n, n2)
	// dropped without commit
	op = jrnl.Begin(d)
	assert.False(t, a.IsUsed(op, n2))
}

func TestFreeReserved(t *testing.T) {
	op := mkOp()
	a := MkAlloc("test", addr.MkAddr(0, 0), 256, 1)
	assert.Panics(t, func() { a.FreeNum(op, 0) })
	assert.Panics(t, func() { a.FreeNum(op, 256) })
}

func TestBitsCommitted(t *testing.T) {
	d := disk.NewMemDisk(4)
	a := MkAlloc("test", addr.MkAddr(2, 256), 64, 0)

	op := jrnl.Begin(d)
	a.MarkUsed(op, 9)
	n, err := a.AllocNum(op)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
	op.CommitWait(true)
	assert.Equal(t, byte(0x02), d.Read(2)[33], "bit 9 lands in the second byte")

	op = jrnl.Begin(d)
	assert.True(t, a.IsUsed(op, 9))
	a.FreeNum(op, 9)
	assert.False(t, a.IsUsed(op, 9))
	op.CommitWait(true)

	op = jrnl.Begin(d)
	assert.False(t, a.IsUsed(op, 9))
	assert.True(t, a.IsUsed(op, 0))
	assert.Equal(t, uint64(63), a.NumFree(op))
}
