package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// SymbolTable is the message that makes a v1 object header a group: it
// points at the B-tree indexing the group's entries and the local heap
// holding their names.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func parseSymbolTable(data []byte, r *binary.Reader) (*SymbolTable, error) {
	c := cursor{buf: data}
	st := &SymbolTable{
		BTreeAddress:     c.uintN(r.OffsetSize()),
		LocalHeapAddress: c.uintN(r.OffsetSize()),
	}
	if c.bad {
		return nil, fmt.Errorf("symbol table message too short")
	}
	return st, nil
}
