package fs

import (
	"fmt"
	"time"

	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/dir"
	"github.com/mit-pdos/go-nufs/inode"
	"github.com/mit-pdos/go-nufs/jrnl"
	"github.com/mit-pdos/go-nufs/util"
)

type Attr struct {
	Inum  common.Inum
	Mode  uint32
	Size  uint64
	Nlink uint32
	Atime time.Time
	Mtime time.Time
}

func (fsys *Fs) getInode(op *jrnl.Op, path string) (*inode.Inode, error) {
	inum, err := fsys.dirs.ResolvePath(op, path)
	if err != nil {
		return nil, err
	}
	return fsys.itab.Get(op, inum), nil
}

// getDir resolves comps and requires a directory.
func (fsys *Fs) getDir(op *jrnl.Op, comps []string) (*inode.Inode, error) {
	inum, err := fsys.dirs.Resolve(op, comps)
	if err != nil {
		return nil, err
	}
	dip := fsys.itab.Get(op, inum)
	if !dip.IsDir() {
		return nil, fmt.Errorf("inode %d: %w", inum, common.ErrNotDir)
	}
	return dip, nil
}

// Access reports whether path resolves.
func (fsys *Fs) Access(path string) bool {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	_, err := fsys.dirs.ResolvePath(fsys.begin(), path)
	return err == nil
}

func (fsys *Fs) Stat(path string) (*Attr, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	ip, err := fsys.getInode(fsys.begin(), path)
	if err != nil {
		return nil, wrap("stat", path, err)
	}
	return &Attr{
		Inum:  ip.Inum,
		Mode:  ip.Mode,
		Size:  uint64(ip.Size),
		Nlink: ip.Refs,
		Atime: time.Unix(int64(ip.Atime), 0),
		Mtime: time.Unix(int64(ip.Mtime), 0),
	}, nil
}

func (fsys *Fs) Truncate(path string, size uint64) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	util.DPrintf(1, "Truncate %s %d\n", path, size)
	op := fsys.begin()
	ip, err := fsys.getInode(op, path)
	if err != nil {
		return wrap("truncate", path, err)
	}
	if ip.IsDir() {
		return wrap("truncate", path, common.ErrIsDir)
	}
	if err := fsys.itab.Resize(op, ip, size); err != nil {
		return wrap("truncate", path, err)
	}
	ip.Mtime = fsys.timestamp()
	fsys.itab.Put(op, ip)
	fsys.commit(op)
	return nil
}

// segments calls f for each piece of [off, off+n) that lies within one block,
// in order, with the block's buffer and the byte range within it.
func (fsys *Fs) segments(op *jrnl.Op, ip *inode.Inode, off uint64, n uint64,
	f func(blk []byte, done uint64, cnt uint64) bool) error {
	var done uint64
	for done < n {
		bn, err := fsys.itab.Bmap(op, ip, off+done)
		if err != nil {
			return err
		}
		boff := (off + done) % disk.BlockSize
		cnt := util.Min(n-done, disk.BlockSize-boff)
		b := op.ReadBlock(bn)
		if f(b.Data[boff:boff+cnt], done, cnt) {
			b.SetDirty()
		}
		done += cnt
	}
	return nil
}

// Read returns the n bytes at off. It does not stop at the file size: bytes
// past it come from whatever the mapped blocks hold, and a range reaching an
// unmapped block or past MaxFileSize fails.
func (fsys *Fs) Read(path string, n uint64, off uint64) ([]byte, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	if util.SumOverflows(off, n) || off+n > inode.MaxFileSize {
		return nil, wrap("read", path, common.ErrInvalid)
	}
	op := fsys.begin()
	ip, err := fsys.getInode(op, path)
	if err != nil {
		return nil, wrap("read", path, err)
	}
	data := make([]byte, n)
	err = fsys.segments(op, ip, off, n, func(blk []byte, done uint64, cnt uint64) bool {
		copy(data[done:done+cnt], blk)
		return false
	})
	if err != nil {
		return nil, wrap("read", path, err)
	}
	return data, nil
}

// Write stores data at off, growing the file first if it ends past the
// current size. It writes all of data or nothing.
func (fsys *Fs) Write(path string, data []byte, off uint64) (uint64, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	n := uint64(len(data))
	util.DPrintf(1, "Write %s %d@%d\n", path, n, off)
	if util.SumOverflows(off, n) {
		return 0, wrap("write", path, common.ErrInvalid)
	}
	op := fsys.begin()
	ip, err := fsys.getInode(op, path)
	if err != nil {
		return 0, wrap("write", path, err)
	}
	if ip.IsDir() {
		return 0, wrap("write", path, common.ErrIsDir)
	}
	if off+n > uint64(ip.Size) {
		if err := fsys.itab.Grow(op, ip, off+n); err != nil {
			return 0, wrap("write", path, err)
		}
	}
	err = fsys.segments(op, ip, off, n, func(blk []byte, done uint64, cnt uint64) bool {
		copy(blk, data[done:done+cnt])
		return true
	})
	if err != nil {
		return 0, wrap("write", path, err)
	}
	ip.Mtime = fsys.timestamp()
	fsys.itab.Put(op, ip)
	fsys.commit(op)
	return n, nil
}

// Mknod creates an inode with the given mode at path. A mode without file
// type bits makes a regular file.
func (fsys *Fs) Mknod(path string, mode uint32) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	util.DPrintf(1, "Mknod %s %#o\n", path, mode)
	parent, leaf, err := dir.SplitParent(path)
	if err != nil {
		return wrap("mknod", path, err)
	}
	if err := dir.CheckName(leaf); err != nil {
		return wrap("mknod", path, err)
	}
	if mode&unix.S_IFMT == 0 {
		mode |= unix.S_IFREG
	}
	op := fsys.begin()
	dip, err := fsys.getDir(op, parent)
	if err != nil {
		return wrap("mknod", path, err)
	}
	if _, err := fsys.dirs.Lookup(op, dip, leaf); err == nil {
		return wrap("mknod", path, common.ErrExists)
	}
	ip, err := fsys.itab.Alloc(op, mode)
	if err != nil {
		return wrap("mknod", path, err)
	}
	ip.Mtime = fsys.timestamp()
	ip.Atime = ip.Mtime
	fsys.itab.Put(op, ip)
	if err := fsys.dirs.Put(op, dip, leaf, ip.Inum); err != nil {
		return wrap("mknod", path, err)
	}
	fsys.commit(op)
	return nil
}

func (fsys *Fs) Mkdir(path string, perm uint32) error {
	return fsys.Mknod(path, unix.S_IFDIR|(perm&^unix.S_IFMT))
}

// Unlink removes the entry at path. The inode is reclaimed with its last
// link. Directories must be empty.
func (fsys *Fs) Unlink(path string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	util.DPrintf(1, "Unlink %s\n", path)
	parent, leaf, err := dir.SplitParent(path)
	if err != nil {
		return wrap("unlink", path, err)
	}
	op := fsys.begin()
	dip, err := fsys.getDir(op, parent)
	if err != nil {
		return wrap("unlink", path, err)
	}
	inum, err := fsys.dirs.Lookup(op, dip, leaf)
	if err != nil {
		return wrap("unlink", path, err)
	}
	ip := fsys.itab.Get(op, inum)
	if ip.IsDir() && !fsys.dirs.IsEmpty(op, ip) {
		return wrap("unlink", path, common.ErrNotEmpty)
	}
	if err := fsys.dirs.Delete(op, dip, leaf); err != nil {
		return wrap("unlink", path, err)
	}
	fsys.commit(op)
	return nil
}

// Link creates the name from for the inode that to names.
func (fsys *Fs) Link(from string, to string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	util.DPrintf(1, "Link %s -> %s\n", from, to)
	parent, leaf, err := dir.SplitParent(from)
	if err != nil {
		return wrap("link", from, err)
	}
	op := fsys.begin()
	tip, err := fsys.getInode(op, to)
	if err != nil {
		return wrap("link", to, err)
	}
	if tip.IsDir() {
		return wrap("link", to, common.ErrIsDir)
	}
	dip, err := fsys.getDir(op, parent)
	if err != nil {
		return wrap("link", from, err)
	}
	if _, err := fsys.dirs.Lookup(op, dip, leaf); err == nil {
		return wrap("link", from, common.ErrExists)
	}
	if err := fsys.dirs.Put(op, dip, leaf, tip.Inum); err != nil {
		return wrap("link", from, err)
	}
	fsys.itab.IncRef(op, tip)
	fsys.commit(op)
	return nil
}

// isAncestor reports whether inum is one of the directories on the way to
// comps (the root included).
func (fsys *Fs) isAncestor(op *jrnl.Op, inum common.Inum, comps []string) bool {
	for i := 0; i <= len(comps); i++ {
		cur, err := fsys.dirs.Resolve(op, comps[:i])
		if err == nil && cur == inum {
			return true
		}
	}
	return false
}

// Rename moves the entry at from to to as a single operation, replacing an
// existing to unless it is a non-empty directory.
func (fsys *Fs) Rename(from string, to string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	util.DPrintf(1, "Rename %s -> %s\n", from, to)
	fparent, fleaf, err := dir.SplitParent(from)
	if err != nil {
		return wrap("rename", from, err)
	}
	tparent, tleaf, err := dir.SplitParent(to)
	if err != nil {
		return wrap("rename", to, err)
	}
	if err := dir.CheckName(tleaf); err != nil {
		return wrap("rename", to, err)
	}
	op := fsys.begin()
	fdip, err := fsys.getDir(op, fparent)
	if err != nil {
		return wrap("rename", from, err)
	}
	inum, err := fsys.dirs.Lookup(op, fdip, fleaf)
	if err != nil {
		return wrap("rename", from, err)
	}
	ip := fsys.itab.Get(op, inum)
	if ip.IsDir() && fsys.isAncestor(op, inum, tparent) {
		return wrap("rename", to, common.ErrInvalid)
	}
	tdip, err := fsys.getDir(op, tparent)
	if err != nil {
		return wrap("rename", to, err)
	}
	if tdip.Inum == fdip.Inum {
		tdip = fdip
	}

	if existing, err := fsys.dirs.Lookup(op, tdip, tleaf); err == nil {
		if existing == inum {
			return nil
		}
		eip := fsys.itab.Get(op, existing)
		switch {
		case eip.IsDir() && !ip.IsDir():
			return wrap("rename", to, common.ErrIsDir)
		case !eip.IsDir() && ip.IsDir():
			return wrap("rename", to, common.ErrNotDir)
		case eip.IsDir() && !fsys.dirs.IsEmpty(op, eip):
			return wrap("rename", to, common.ErrNotEmpty)
		}
		if err := fsys.dirs.Delete(op, tdip, tleaf); err != nil {
			return wrap("rename", to, err)
		}
	}

	if tdip == fdip {
		err = fsys.dirs.Rename(op, fdip, fleaf, tleaf)
	} else {
		err = fsys.dirs.Put(op, tdip, tleaf, inum)
		if err == nil {
			_, err = fsys.dirs.Unbind(op, fdip, fleaf)
		}
	}
	if err != nil {
		return wrap("rename", from, err)
	}
	fsys.commit(op)
	return nil
}

// SetTime checks that path exists and records its access and modification
// times (whole seconds).
func (fsys *Fs) SetTime(path string, atime time.Time, mtime time.Time) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	op := fsys.begin()
	ip, err := fsys.getInode(op, path)
	if err != nil {
		return wrap("utimens", path, err)
	}
	ip.Atime = uint32(atime.Unix())
	ip.Mtime = uint32(mtime.Unix())
	fsys.itab.Put(op, ip)
	fsys.commit(op)
	return nil
}

// List returns the names in the directory at path.
func (fsys *Fs) List(path string) ([]string, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	op := fsys.begin()
	ip, err := fsys.getInode(op, path)
	if err != nil {
		return nil, wrap("list", path, err)
	}
	names, err := fsys.dirs.List(op, ip)
	if err != nil {
		return nil, wrap("list", path, err)
	}
	return names, nil
}
