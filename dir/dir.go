// Package dir stores directories as arrays of fixed-size entries in the
// directory inode's first block and resolves paths against them.
//
// A directory's size is its number of entry slots times DIRENTSZ, so a
// directory holds at most DIRENTBLK entries. Slots are never compacted; a
// deleted entry is marked unused and may be reused by a later Put.
package dir

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/inode"
	"github.com/mit-pdos/go-nufs/jrnl"
	"github.com/mit-pdos/go-nufs/util"
)

type Dirs struct {
	itab *inode.Table
}

func MkDirs(itab *inode.Table) *Dirs {
	return &Dirs{itab: itab}
}

// InitRoot creates the root directory. It must be the first inode allocated
// on a fresh file system.
func (d *Dirs) InitRoot(op *jrnl.Op) error {
	ip, err := d.itab.Alloc(op, unix.S_IFDIR|0755)
	if err != nil {
		return err
	}
	if ip.Inum != common.ROOTINUM {
		panic(fmt.Errorf("root allocated as inode %d", ip.Inum))
	}
	return nil
}

func nslots(dip *inode.Inode) uint64 {
	return util.Min(uint64(dip.Size)/common.DIRENTSZ, common.DIRENTBLK)
}

func slotAddr(dip *inode.Inode, slot uint64) addr.Addr {
	return addr.MkAddr(dip.Direct[0], slot*common.DIRENTSZ*8)
}

func (d *Dirs) readEnt(op *jrnl.Op, dip *inode.Inode, slot uint64) *Dirent {
	return DecodeDirent(op.ReadBuf(slotAddr(dip, slot), common.DIRENTSZ*8).Data)
}

func (d *Dirs) writeEnt(op *jrnl.Op, dip *inode.Inode, slot uint64, de *Dirent) {
	op.OverWrite(slotAddr(dip, slot), common.DIRENTSZ*8, de.Encode())
}

func checkDir(dip *inode.Inode) error {
	if !dip.IsDir() {
		return fmt.Errorf("inode %d: %w", dip.Inum, common.ErrNotDir)
	}
	return nil
}

// find returns the slot of the first used entry called name.
func (d *Dirs) find(op *jrnl.Op, dip *inode.Inode, name string) (uint64, *Dirent, bool) {
	for slot := uint64(0); slot < nslots(dip); slot++ {
		de := d.readEnt(op, dip, slot)
		if de.Used && de.Name == name {
			return slot, de, true
		}
	}
	return 0, nil, false
}

// Lookup returns the inode bound to name in dip. The empty name is the root.
func (d *Dirs) Lookup(op *jrnl.Op, dip *inode.Inode, name string) (common.Inum, error) {
	if name == "" {
		return common.ROOTINUM, nil
	}
	if err := checkDir(dip); err != nil {
		return 0, err
	}
	_, de, ok := d.find(op, dip, name)
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, common.ErrNotFound)
	}
	return de.Inum, nil
}

// Put binds name to inum in dip without checking for an existing binding.
//
// The first unused slot after slot 0 is reused; otherwise the entry is
// appended and the directory grows by one slot.
func (d *Dirs) Put(op *jrnl.Op, dip *inode.Inode, name string, inum common.Inum) error {
	if err := checkDir(dip); err != nil {
		return err
	}
	if err := CheckName(name); err != nil {
		return err
	}
	de := &Dirent{Name: name, Inum: inum, Used: true}
	n := nslots(dip)
	for slot := uint64(1); slot < n; slot++ {
		if !d.readEnt(op, dip, slot).Used {
			d.writeEnt(op, dip, slot, de)
			return nil
		}
	}
	if n >= common.DIRENTBLK {
		return fmt.Errorf("directory %d is full: %w", dip.Inum, common.ErrNoSpace)
	}
	d.writeEnt(op, dip, n, de)
	dip.Size += uint32(common.DIRENTSZ)
	d.itab.Put(op, dip)
	return nil
}

// Unbind removes the entry for name and returns the inode it named, leaving
// that inode's link count alone.
func (d *Dirs) Unbind(op *jrnl.Op, dip *inode.Inode, name string) (common.Inum, error) {
	if err := checkDir(dip); err != nil {
		return 0, err
	}
	slot, de, ok := d.find(op, dip, name)
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, common.ErrNotFound)
	}
	d.writeEnt(op, dip, slot, &Dirent{})
	return de.Inum, nil
}

// Delete removes the entry for name and drops one link from its inode.
func (d *Dirs) Delete(op *jrnl.Op, dip *inode.Inode, name string) error {
	inum, err := d.Unbind(op, dip, name)
	if err != nil {
		return err
	}
	d.itab.DecRef(op, d.itab.Get(op, inum))
	return nil
}

// Rename changes the name of an entry in place.
func (d *Dirs) Rename(op *jrnl.Op, dip *inode.Inode, from string, to string) error {
	if err := checkDir(dip); err != nil {
		return err
	}
	if err := CheckName(to); err != nil {
		return err
	}
	slot, de, ok := d.find(op, dip, from)
	if !ok {
		return fmt.Errorf("%q: %w", from, common.ErrNotFound)
	}
	de.Name = to
	d.writeEnt(op, dip, slot, de)
	return nil
}

// List returns the names in dip in slot order.
func (d *Dirs) List(op *jrnl.Op, dip *inode.Inode) ([]string, error) {
	if err := checkDir(dip); err != nil {
		return nil, err
	}
	names := make([]string, 0)
	for slot := uint64(0); slot < nslots(dip); slot++ {
		de := d.readEnt(op, dip, slot)
		if de.Used {
			names = append(names, de.Name)
		}
	}
	return names, nil
}

// Entries returns the used entries of dip in slot order.
func (d *Dirs) Entries(op *jrnl.Op, dip *inode.Inode) []*Dirent {
	var ents []*Dirent
	for slot := uint64(0); slot < nslots(dip); slot++ {
		de := d.readEnt(op, dip, slot)
		if de.Used {
			ents = append(ents, de)
		}
	}
	return ents
}

func (d *Dirs) IsEmpty(op *jrnl.Op, dip *inode.Inode) bool {
	return len(d.Entries(op, dip)) == 0
}
