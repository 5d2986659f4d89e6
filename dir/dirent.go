package dir

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-nufs/common"
)

// Dirent binds a name to an inode.
//
// On disk (DIRENTSZ bytes): name[48] (NUL padded) | inum u32 | used u8 | pad
type Dirent struct {
	Name string
	Inum common.Inum
	Used bool
}

func (de *Dirent) Encode() []byte {
	enc := marshal.NewEnc(common.DIRENTSZ)
	name := make([]byte, common.DIRNAMELEN)
	copy(name, de.Name)
	enc.PutBytes(name)
	enc.PutInt32(uint32(de.Inum))
	var used byte
	if de.Used {
		used = 1
	}
	enc.PutBytes([]byte{used})
	return enc.Finish()
}

func DecodeDirent(d []byte) *Dirent {
	if uint64(len(d)) != common.DIRENTSZ {
		panic("DecodeDirent: not a directory entry")
	}
	dec := marshal.NewDec(d)
	name := dec.GetBytes(common.DIRNAMELEN)
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	inum := dec.GetInt32()
	used := dec.GetBytes(1)[0]
	return &Dirent{
		Name: string(name),
		Inum: common.Inum(inum),
		Used: used != 0,
	}
}

// CheckName rejects names that cannot be stored in an entry.
func CheckName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("name %q: %w", name, common.ErrInvalid)
	}
	if uint64(len(name)) > common.DIRNAMELEN {
		return fmt.Errorf("name %q: %w", name, common.ErrNameTooLong)
	}
	return nil
}
