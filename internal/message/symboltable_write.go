package message

import (
	"github.com/fennelab/hdf5/internal/binary"
)

// NewSymbolTable creates a symbol table message pointing at a group's
// B-tree and local heap.
func NewSymbolTable(btreeAddr, heapAddr uint64) *SymbolTable {
	return &SymbolTable{
		BTreeAddress:     btreeAddr,
		LocalHeapAddress: heapAddr,
	}
}

// Serialize writes the symbol table message.
func (m *SymbolTable) Serialize(w *binary.Writer) error {
	if err := w.WriteOffset(m.BTreeAddress); err != nil {
		return err
	}
	return w.WriteOffset(m.LocalHeapAddress)
}

// SerializedSize returns the encoded size of the symbol table message.
func (m *SymbolTable) SerializedSize(w *binary.Writer) int {
	return 2 * w.OffsetSize()
}
