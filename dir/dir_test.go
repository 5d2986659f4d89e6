package dir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/inode"
	"github.com/mit-pdos/go-nufs/jrnl"
	"github.com/mit-pdos/go-nufs/super"
)

func TestDirentEncode(t *testing.T) {
	de := &Dirent{Name: "hello", Inum: 42, Used: true}
	d := de.Encode()
	assert.Equal(t, int(common.DIRENTSZ), len(d))
	assert.Equal(t, []byte("hello\x00"), d[:6])
	assert.Equal(t, []byte{42, 0, 0, 0, 1}, d[common.DIRNAMELEN:common.DIRNAMELEN+5])
	assert.Equal(t, de, DecodeDirent(d))

	long := &Dirent{Name: strings.Repeat("x", 48), Inum: 1, Used: false}
	assert.Equal(t, long, DecodeDirent(long.Encode()), "name fills the field")
}

func TestCheckName(t *testing.T) {
	assert.NoError(t, CheckName("a.txt"))
	assert.NoError(t, CheckName(strings.Repeat("x", 48)))
	assert.ErrorIs(t, CheckName(strings.Repeat("x", 49)), common.ErrNameTooLong)
	assert.ErrorIs(t, CheckName(""), common.ErrInvalid)
	assert.ErrorIs(t, CheckName("a/b"), common.ErrInvalid)
}

func TestSplitPath(t *testing.T) {
	assert := assert.New(t)
	assert.Equal([]string{}, SplitPath(""))
	assert.Equal([]string{}, SplitPath("/"))
	assert.Equal([]string{"a", "b", "c"}, SplitPath("/a/b/c"))
	assert.Equal([]string{"a", "b"}, SplitPath("a//b/"))

	parent, leaf, err := SplitParent("/a/b/c")
	assert.NoError(err)
	assert.Equal([]string{"a", "b"}, parent)
	assert.Equal("c", leaf)

	parent, leaf, err = SplitParent("/foo")
	assert.NoError(err)
	assert.Equal([]string{}, parent)
	assert.Equal("foo", leaf)

	_, _, err = SplitParent("/")
	assert.ErrorIs(err, common.ErrInvalid)
}

type DirSuite struct {
	suite.Suite
	itab *inode.Table
	dirs *Dirs
	op   *jrnl.Op
}

func (suite *DirSuite) SetupTest() {
	d := disk.NewMemDisk(common.NBLOCKS)
	fs, err := super.MkFsSuper(d)
	suite.Require().NoError(err)
	suite.itab = inode.MkTable(fs)
	suite.dirs = MkDirs(suite.itab)
	suite.op = jrnl.Begin(d)
	suite.itab.Format(suite.op)
	suite.Require().NoError(suite.dirs.InitRoot(suite.op))
}

func (suite *DirSuite) root() *inode.Inode {
	return suite.itab.Get(suite.op, common.ROOTINUM)
}

func (suite *DirSuite) mk(dip *inode.Inode, name string, mode uint32) *inode.Inode {
	suite.T().Helper()
	ip, err := suite.itab.Alloc(suite.op, mode)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.dirs.Put(suite.op, dip, name, ip.Inum))
	return ip
}

func (suite *DirSuite) TestRoot() {
	root := suite.root()
	suite.True(root.IsDir())
	suite.Equal(uint32(0), root.Size)
	inum, err := suite.dirs.Lookup(suite.op, root, "")
	suite.NoError(err)
	suite.Equal(common.ROOTINUM, inum)
}

func (suite *DirSuite) TestPutLookupDelete() {
	root := suite.root()
	ip := suite.mk(root, "foo", unix.S_IFREG|0644)
	suite.Equal(uint32(common.DIRENTSZ), root.Size)

	inum, err := suite.dirs.Lookup(suite.op, root, "foo")
	suite.Require().NoError(err)
	suite.Equal(ip.Inum, inum)

	suite.Require().NoError(suite.dirs.Delete(suite.op, root, "foo"))
	_, err = suite.dirs.Lookup(suite.op, root, "foo")
	suite.ErrorIs(err, common.ErrNotFound)
	suite.False(suite.itab.IsLive(suite.op, ip.Inum), "last link dropped")

	suite.ErrorIs(suite.dirs.Delete(suite.op, root, "foo"), common.ErrNotFound)
}

func (suite *DirSuite) TestDeleteKeepsLinkedInode() {
	root := suite.root()
	ip := suite.mk(root, "a", unix.S_IFREG|0644)
	suite.Require().NoError(suite.dirs.Put(suite.op, root, "b", ip.Inum))
	suite.itab.IncRef(suite.op, ip)

	suite.Require().NoError(suite.dirs.Delete(suite.op, root, "a"))
	suite.True(suite.itab.IsLive(suite.op, ip.Inum))
	suite.Equal(uint32(1), suite.itab.Get(suite.op, ip.Inum).Refs)
}

func (suite *DirSuite) TestSlotReuse() {
	root := suite.root()
	suite.mk(root, "s0", unix.S_IFREG)
	suite.mk(root, "s1", unix.S_IFREG)
	suite.mk(root, "s2", unix.S_IFREG)
	suite.mk(root, "s3", unix.S_IFREG)
	size := root.Size

	suite.Require().NoError(suite.dirs.Delete(suite.op, root, "s2"))
	suite.Require().NoError(suite.dirs.Delete(suite.op, root, "s1"))
	suite.mk(root, "n1", unix.S_IFREG)
	suite.Equal(size, root.Size, "freed slot reused")
	suite.Equal([]string{"s0", "n1", "s3"}, suite.list(root), "first free slot taken")

	suite.Require().NoError(suite.dirs.Delete(suite.op, root, "s0"))
	suite.mk(root, "n2", unix.S_IFREG)
	suite.Equal([]string{"n1", "n2", "s3"}, suite.list(root), "slot 2 before slot 0")
	suite.mk(root, "n3", unix.S_IFREG)
	suite.Equal(size+uint32(common.DIRENTSZ), root.Size, "slot 0 is never reused")
}

func (suite *DirSuite) list(dip *inode.Inode) []string {
	names, err := suite.dirs.List(suite.op, dip)
	suite.Require().NoError(err)
	return names
}

func (suite *DirSuite) TestDuplicateNames() {
	root := suite.root()
	a := suite.mk(root, "dup", unix.S_IFREG)
	suite.mk(root, "dup", unix.S_IFREG)
	inum, err := suite.dirs.Lookup(suite.op, root, "dup")
	suite.NoError(err)
	suite.Equal(a.Inum, inum, "first physical match wins")
}

func (suite *DirSuite) TestFull() {
	root := suite.root()
	ip := suite.mk(root, "f", unix.S_IFREG)
	for i := uint64(1); i < common.DIRENTBLK; i++ {
		suite.Require().NoError(suite.dirs.Put(suite.op, root, "f", ip.Inum))
	}
	err := suite.dirs.Put(suite.op, root, "g", ip.Inum)
	suite.ErrorIs(err, common.ErrNoSpace)
}

func (suite *DirSuite) TestRenameInPlace() {
	root := suite.root()
	ip := suite.mk(root, "old", unix.S_IFREG)
	suite.Require().NoError(suite.dirs.Rename(suite.op, root, "old", "new"))
	suite.Equal([]string{"new"}, suite.list(root))
	inum, err := suite.dirs.Lookup(suite.op, root, "new")
	suite.NoError(err)
	suite.Equal(ip.Inum, inum)
}

func (suite *DirSuite) TestNotDir() {
	root := suite.root()
	f := suite.mk(root, "f", unix.S_IFREG)
	_, err := suite.dirs.Lookup(suite.op, f, "x")
	suite.ErrorIs(err, common.ErrNotDir)
	suite.ErrorIs(suite.dirs.Put(suite.op, f, "x", 1), common.ErrNotDir)
	_, err = suite.dirs.ResolvePath(suite.op, "/f/x")
	suite.ErrorIs(err, common.ErrNotDir)
}

func (suite *DirSuite) TestResolvePath() {
	root := suite.root()
	a := suite.mk(root, "a", unix.S_IFDIR|0755)
	b := suite.mk(a, "b", unix.S_IFDIR|0755)
	c := suite.mk(b, "c", unix.S_IFREG|0644)

	inum, err := suite.dirs.ResolvePath(suite.op, "/a/b/c")
	suite.Require().NoError(err)
	suite.Equal(c.Inum, inum)

	// same as three lookups
	i1, _ := suite.dirs.Lookup(suite.op, suite.root(), "a")
	i2, _ := suite.dirs.Lookup(suite.op, suite.itab.Get(suite.op, i1), "b")
	i3, _ := suite.dirs.Lookup(suite.op, suite.itab.Get(suite.op, i2), "c")
	suite.Equal(inum, i3)

	inum, err = suite.dirs.ResolvePath(suite.op, "")
	suite.NoError(err)
	suite.Equal(common.ROOTINUM, inum)

	_, err = suite.dirs.ResolvePath(suite.op, "/a/x/c")
	suite.ErrorIs(err, common.ErrNotFound)
}

func (suite *DirSuite) TestStaleBlockIgnored() {
	root := suite.root()
	d := suite.mk(root, "d", unix.S_IFDIR|0755)
	suite.mk(d, "x", unix.S_IFREG)
	blk := d.Direct[0]
	suite.Require().NoError(suite.dirs.Delete(suite.op, d, "x"))
	suite.itab.Free(suite.op, d)

	// a new directory may get the same block back
	d2 := suite.mk(root, "d2", unix.S_IFDIR|0755)
	suite.Equal(blk, d2.Direct[0])
	suite.Equal([]string{}, suite.list(d2))
	suite.True(suite.dirs.IsEmpty(suite.op, d2))
}

func TestDirs(t *testing.T) {
	suite.Run(t, new(DirSuite))
}
