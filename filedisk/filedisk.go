// Package filedisk implements a disk.Disk on a memory-mapped file.
//
// The file is sized to exactly numBlocks*BlockSize bytes and mapped shared, so
// writes reach the page cache immediately; Barrier flushes them to the file.
package filedisk

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-nufs/util"
)

var _ disk.Disk = (*MmapDisk)(nil)

type MmapDisk struct {
	fd        int
	numBlocks uint64
	region    []byte
}

// NewMmapDisk opens (creating if needed) the image at path and maps it.
func NewMmapDisk(path string, numBlocks uint64) (*MmapDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	size := int64(numBlocks * disk.BlockSize)
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if stat.Mode&unix.S_IFMT == unix.S_IFREG && stat.Size != size {
		if err := unix.Ftruncate(fd, size); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("truncate %s: %w", path, err)
		}
	}
	region, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	util.DPrintf(1, "NewMmapDisk: %s, %d blocks\n", path, numBlocks)
	return &MmapDisk{fd: fd, numBlocks: numBlocks, region: region}, nil
}

func (d *MmapDisk) blockAt(a uint64) []byte {
	if d.region == nil {
		panic("use of closed disk")
	}
	if a >= d.numBlocks {
		panic(fmt.Errorf("out-of-bounds access at %v", a))
	}
	return d.region[a*disk.BlockSize : (a+1)*disk.BlockSize]
}

func (d *MmapDisk) ReadTo(a uint64, buf disk.Block) {
	if uint64(len(buf)) != disk.BlockSize {
		panic("buffer is not block-sized")
	}
	copy(buf, d.blockAt(a))
}

func (d *MmapDisk) Read(a uint64) disk.Block {
	buf := make(disk.Block, disk.BlockSize)
	d.ReadTo(a, buf)
	return buf
}

func (d *MmapDisk) Write(a uint64, v disk.Block) {
	if uint64(len(v)) != disk.BlockSize {
		panic(fmt.Errorf("v is not block-sized (%d bytes)", len(v)))
	}
	copy(d.blockAt(a), v)
}

func (d *MmapDisk) Size() uint64 {
	return d.numBlocks
}

func (d *MmapDisk) Barrier() {
	if err := unix.Msync(d.region, unix.MS_SYNC); err != nil {
		panic("msync failed: " + err.Error())
	}
}

// Close unmaps the region and closes the file. It does not flush; call
// Barrier first for durability.
func (d *MmapDisk) Close() {
	if d.region == nil {
		return
	}
	if err := unix.Munmap(d.region); err != nil {
		panic("munmap failed: " + err.Error())
	}
	d.region = nil
	if err := unix.Close(d.fd); err != nil {
		panic(err)
	}
}
