// Package fs is the file-operation surface of the storage engine. Every
// operation names its target by path and runs as one jrnl.Op: either all of
// its changes reach the disk or, if it fails, none do.
package fs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/dir"
	"github.com/mit-pdos/go-nufs/filedisk"
	"github.com/mit-pdos/go-nufs/inode"
	"github.com/mit-pdos/go-nufs/jrnl"
	"github.com/mit-pdos/go-nufs/super"
	"github.com/mit-pdos/go-nufs/util"
)

type Options struct {
	// Sync issues a disk barrier after every operation that writes.
	Sync bool
}

type Fs struct {
	mu   *sync.Mutex
	sb   *super.FsSuper
	itab *inode.Table
	dirs *dir.Dirs
	sync bool
	now  func() time.Time
}

func mkFs(sb *super.FsSuper, opts Options) *Fs {
	itab := inode.MkTable(sb)
	return &Fs{
		mu:   new(sync.Mutex),
		sb:   sb,
		itab: itab,
		dirs: dir.MkDirs(itab),
		sync: opts.Sync,
		now:  time.Now,
	}
}

// Mkfs formats d: clears the bitmaps and inode table, reserves the metadata
// blocks, writes the schema header and creates the root directory.
func Mkfs(d disk.Disk, opts Options) (*Fs, error) {
	sb, err := super.MkFsSuper(d)
	if err != nil {
		return nil, err
	}
	fsys := mkFs(sb, opts)
	op := jrnl.Begin(d)
	for bn := common.Bnum(0); bn < sb.DataStart(); bn++ {
		op.ZeroBlock(bn)
	}
	fsys.itab.Format(op)
	sb.WriteHeader(op)
	if err := fsys.dirs.InitRoot(op); err != nil {
		return nil, err
	}
	op.CommitWait(true)
	util.DPrintf(1, "Mkfs: %v\n", sb.UUID)
	return fsys, nil
}

// Open loads the file system on d, formatting d if it holds none.
func Open(d disk.Disk, opts Options) (*Fs, error) {
	sb, ok, err := super.ReadFsSuper(d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Mkfs(d, opts)
	}
	util.DPrintf(1, "Open: %v\n", sb.UUID)
	return mkFs(sb, opts), nil
}

// OpenFile maps the image at path, creating and formatting it if needed.
func OpenFile(path string, opts Options) (*Fs, error) {
	d, err := filedisk.NewMmapDisk(path, common.NBLOCKS)
	if err != nil {
		return nil, err
	}
	fsys, err := Open(d, opts)
	if err != nil {
		d.Close()
		return nil, err
	}
	return fsys, nil
}

// MkMemFs returns a freshly formatted in-memory file system.
func MkMemFs() *Fs {
	fsys, err := Mkfs(disk.NewMemDisk(common.NBLOCKS), Options{})
	if err != nil {
		panic(err)
	}
	return fsys
}

// Sync makes all committed operations durable.
func (fsys *Fs) Sync() {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.sb.Disk.Barrier()
}

// Close flushes and releases the disk. The Fs is unusable afterwards.
func (fsys *Fs) Close() {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.sb.Disk.Barrier()
	fsys.sb.Disk.Close()
}

func (fsys *Fs) begin() *jrnl.Op {
	return jrnl.Begin(fsys.sb.Disk)
}

func (fsys *Fs) commit(op *jrnl.Op) {
	op.CommitWait(fsys.sync)
}

func (fsys *Fs) timestamp() uint32 {
	return uint32(fsys.now().Unix())
}

// Errno translates an error from this package into the errno a kernel bridge
// should report.
func Errno(err error) unix.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, common.ErrNotFound):
		return unix.ENOENT
	case errors.Is(err, common.ErrExists):
		return unix.EEXIST
	case errors.Is(err, common.ErrNoSpace):
		return unix.ENOSPC
	case errors.Is(err, common.ErrNotDir):
		return unix.ENOTDIR
	case errors.Is(err, common.ErrIsDir):
		return unix.EISDIR
	case errors.Is(err, common.ErrNotEmpty):
		return unix.ENOTEMPTY
	case errors.Is(err, common.ErrNameTooLong):
		return unix.ENAMETOOLONG
	default:
		return unix.EINVAL
	}
}

func wrap(op string, path string, err error) error {
	return fmt.Errorf("%s %s: %w", op, path, err)
}
