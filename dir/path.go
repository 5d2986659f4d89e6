package dir

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/jrnl"
)

// SplitPath breaks a '/'-separated path into its components. Empty
// components are dropped, so "/", "" and "//" all name the root.
func SplitPath(path string) []string {
	return slices.DeleteFunc(strings.Split(path, "/"), func(c string) bool {
		return c == ""
	})
}

// SplitParent separates the final component of path from its parent's
// components.
func SplitParent(path string) ([]string, string, error) {
	comps := SplitPath(path)
	if len(comps) == 0 {
		return nil, "", fmt.Errorf("%q has no final component: %w", path, common.ErrInvalid)
	}
	return comps[:len(comps)-1], comps[len(comps)-1], nil
}

// Resolve walks comps from the root, one lookup per component.
func (d *Dirs) Resolve(op *jrnl.Op, comps []string) (common.Inum, error) {
	cur := common.ROOTINUM
	for i, c := range comps {
		next, err := d.Lookup(op, d.itab.Get(op, cur), c)
		if err != nil {
			return 0, fmt.Errorf("/%s: %w", strings.Join(comps[:i+1], "/"), err)
		}
		cur = next
	}
	return cur, nil
}

func (d *Dirs) ResolvePath(op *jrnl.Op, path string) (common.Inum, error) {
	return d.Resolve(op, SplitPath(path))
}
