package csr

import (
	"sync"
)

// SlotBytes is the width of one register slot.
const SlotBytes = 8

// Standard slot indices shared by every block.
const (
	SlotIdentityLo = 0
	SlotIdentityHi = 1
	SlotPayload    = 2
	SlotNumSlots   = 3
	SlotNextBase   = 4
	SlotFirstFree  = 5
)

// A Block is a fixed-size array of 64-bit register slots owned by exactly one
// engine or pipeline component. The bus only routes into it; owners mutate it
// through SetSlot and SetDynamic.
type Block struct {
	mu sync.Mutex

	base     uint64
	slots    []uint64
	readOnly []bool
	dynamic  []func() uint64
}

// NewBlock creates a block with the given identity value and slot count. The
// header slots are read-only from the bus; the base address and next-block
// link are filled in when the block is placed in an address map.
func NewBlock(identityLo, identityHi uint64, numSlots int) *Block {
	if numSlots < SlotFirstFree {
		panic("csr: a block needs at least the five header slots")
	}

	b := &Block{
		slots:    make([]uint64, numSlots),
		readOnly: make([]bool, numSlots),
		dynamic:  make([]func() uint64, numSlots),
	}

	b.slots[SlotIdentityLo] = identityLo
	b.slots[SlotIdentityHi] = identityHi
	b.slots[SlotNumSlots] = uint64(numSlots)

	b.readOnly[SlotIdentityLo] = true
	b.readOnly[SlotIdentityHi] = true
	b.readOnly[SlotPayload] = true
	b.readOnly[SlotNumSlots] = true
	b.readOnly[SlotNextBase] = true

	return b
}

// Base returns the physical base address of the block.
func (b *Block) Base() uint64 {
	return b.base
}

// NumSlots returns the number of slots in the block.
func (b *Block) NumSlots() int {
	return len(b.slots)
}

// SetSlot writes a slot on behalf of the owning component, ignoring the
// read-only marking that protects the slot from bus writes.
func (b *Block) SetSlot(i int, v uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slots[i] = v
}

// SetDynamic binds a slot to a value computed at read time. Dynamic slots
// reject bus writes.
func (b *Block) SetDynamic(i int, f func() uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dynamic[i] = f
	b.readOnly[i] = true
}

// MarkReadOnly protects a slot from bus writes.
func (b *Block) MarkReadOnly(i int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.readOnly[i] = true
}

// ReadSlot returns the current value of a slot.
func (b *Block) ReadSlot(i int) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dynamic[i] != nil {
		return b.dynamic[i]()
	}

	return b.slots[i]
}

// WriteSlot applies a bus write to a slot. It reports whether the write took
// effect; writes to read-only or dynamic slots are dropped.
func (b *Block) WriteSlot(i int, v uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.readOnly[i] || b.dynamic[i] != nil {
		return false
	}

	b.slots[i] = v

	return true
}

func (b *Block) contains(addr uint64) bool {
	return addr >= b.base && addr < b.base+uint64(len(b.slots))*SlotBytes
}

// LayOut places blocks back to back starting at base, in the given order, and
// chains them through their next-base slots. The last block's next-base slot
// stays 0 to terminate discovery.
func LayOut(base uint64, blocks []*Block) {
	addr := base
	for _, b := range blocks {
		b.base = addr
		addr += uint64(len(b.slots)) * SlotBytes
	}

	for i := 0; i < len(blocks)-1; i++ {
		blocks[i].SetSlot(SlotNextBase, blocks[i+1].base)
	}
}
