package fs

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-nufs/alloc"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/jrnl"
)

type StatFs struct {
	UUID       uuid.UUID
	BlockSize  uint64
	Blocks     uint64
	BlocksFree uint64
	Inodes     uint64
	InodesFree uint64
}

func (fsys *Fs) Statfs() *StatFs {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	op := fsys.begin()
	return &StatFs{
		UUID:       fsys.sb.UUID,
		BlockSize:  disk.BlockSize,
		Blocks:     fsys.sb.NBlocks,
		BlocksFree: fsys.itab.Balloc().NumFree(op),
		Inodes:     fsys.sb.NInodes,
		InodesFree: fsys.itab.Ialloc().NumFree(op),
	}
}

func bitmapString(op *jrnl.Op, a *alloc.Alloc) string {
	var sb strings.Builder
	for n := uint64(0); n < a.Len(); n++ {
		if n > 0 && n%64 == 0 {
			sb.WriteByte('\n')
		} else if n > 0 && n%8 == 0 {
			sb.WriteByte(' ')
		}
		if a.IsUsed(op, n) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

// Dump prints the bitmaps, every live inode and the entries of every live
// directory.
func (fsys *Fs) Dump(w io.Writer) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	op := fsys.begin()
	if _, err := fmt.Fprintf(w, "fs %v\nblocks:\n%sinodes:\n%s",
		fsys.sb.UUID,
		bitmapString(op, fsys.itab.Balloc()),
		bitmapString(op, fsys.itab.Ialloc())); err != nil {
		return err
	}
	for inum := common.Inum(0); uint64(inum) < fsys.sb.NInodes; inum++ {
		if !fsys.itab.IsLive(op, inum) {
			continue
		}
		ip := fsys.itab.Get(op, inum)
		if _, err := fmt.Fprintf(w, "%v blocks=%v\n", ip, fsys.itab.Blocks(op, ip)); err != nil {
			return err
		}
		if !ip.IsDir() {
			continue
		}
		for _, de := range fsys.dirs.Entries(op, ip) {
			if _, err := fmt.Fprintf(w, "  %-48s %d\n", de.Name, de.Inum); err != nil {
				return err
			}
		}
	}
	return nil
}
