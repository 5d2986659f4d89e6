package filedisk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"
)

func block(b byte) disk.Block {
	blk := make(disk.Block, disk.BlockSize)
	for i := range blk {
		blk[i] = b
	}
	return blk
}

func TestCreateSized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img")
	d, err := NewMmapDisk(path, 8)
	require.NoError(t, err)
	defer d.Close()

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8*disk.BlockSize), st.Size())
	assert.Equal(t, uint64(8), d.Size())
	assert.Equal(t, make(disk.Block, disk.BlockSize), d.Read(7))
}

func TestWritePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img")
	d, err := NewMmapDisk(path, 8)
	require.NoError(t, err)
	d.Write(3, block(0xab))
	d.Barrier()
	d.Close()

	d, err = NewMmapDisk(path, 8)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, block(0xab), d.Read(3))
	assert.Equal(t, block(0), d.Read(2))
}

func TestReadIsCopy(t *testing.T) {
	d, err := NewMmapDisk(filepath.Join(t.TempDir(), "img"), 4)
	require.NoError(t, err)
	defer d.Close()
	b := d.Read(1)
	b[0] = 1
	assert.Equal(t, byte(0), d.Read(1)[0])
}

func TestBounds(t *testing.T) {
	d, err := NewMmapDisk(filepath.Join(t.TempDir(), "img"), 4)
	require.NoError(t, err)
	defer d.Close()
	assert.Panics(t, func() { d.Read(4) })
	assert.Panics(t, func() { d.Write(0, make(disk.Block, 10)) })
}
