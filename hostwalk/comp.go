// Package hostwalk provides a host-side agent that discovers the register map
// by following the next-block chain, issuing in-band 64-bit reads through the
// primary pipeline. The walk terminates when a block links to address 0.
package hostwalk

import (
	"encoding/binary"
	"log"
	"reflect"

	"github.com/sarchlab/akita/v3/mem/mem"
	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"

	"github.com/sarchlab/memharness/csr"
)

// BlockInfo records one visited register block.
type BlockInfo struct {
	Base       uint64
	IdentityLo uint64
	IdentityHi uint64
	Payload    uint64
	NumSlots   uint64
	Next       uint64
}

// The slots the walker samples from each block, in issue order.
var sampledSlots = []int{
	csr.SlotIdentityLo,
	csr.SlotIdentityHi,
	csr.SlotPayload,
	csr.SlotNumSlots,
	csr.SlotNextBase,
}

// Comp walks the register-block chain.
type Comp struct {
	*sim.TickingComponent

	memPort sim.Port

	pipelinePort sim.Port
	pid          vm.PID

	currentBase uint64
	slotIndex   int
	current     BlockInfo
	visited     []BlockInfo

	pendingReqID string
	done         bool
}

// MemPort returns the port the walker issues reads from. It must be plugged
// into the harness interconnect.
func (c *Comp) MemPort() sim.Port {
	return c.memPort
}

// Done reports whether the walk has reached the chain terminator.
func (c *Comp) Done() bool {
	return c.done
}

// Visited returns the blocks discovered so far, in chain order.
func (c *Comp) Visited() []BlockInfo {
	return c.visited
}

// IdentityLo returns the low half of the discovered harness identity.
func (c *Comp) IdentityLo() uint64 {
	return c.visited[0].IdentityLo
}

// IdentityHi returns the high half of the discovered harness identity.
func (c *Comp) IdentityHi() uint64 {
	return c.visited[0].IdentityHi
}

// Topology returns the topology summary advertised by the global block.
func (c *Comp) Topology() uint64 {
	return c.visited[0].Payload
}

// Tick updates the state of the walker in one cycle.
func (c *Comp) Tick(now sim.VTimeInSec) bool {
	madeProgress := false

	madeProgress = c.collect(now) || madeProgress
	madeProgress = c.issue(now) || madeProgress

	return madeProgress
}

func (c *Comp) collect(now sim.VTimeInSec) bool {
	item := c.memPort.Peek()
	if item == nil {
		return false
	}

	rsp, ok := item.(*mem.DataReadyRsp)
	if !ok {
		log.Panicf("hostwalk cannot handle respond of type %s",
			reflect.TypeOf(item))
	}

	if rsp.RespondTo != c.pendingReqID {
		log.Panicf("hostwalk received data for an unknown read %s",
			rsp.RespondTo)
	}

	c.memPort.Retrieve(now)
	c.pendingReqID = ""
	c.recordSlot(binary.LittleEndian.Uint64(rsp.Data))

	return true
}

func (c *Comp) recordSlot(value uint64) {
	switch sampledSlots[c.slotIndex] {
	case csr.SlotIdentityLo:
		c.current.IdentityLo = value
	case csr.SlotIdentityHi:
		c.current.IdentityHi = value
	case csr.SlotPayload:
		c.current.Payload = value
	case csr.SlotNumSlots:
		c.current.NumSlots = value
	case csr.SlotNextBase:
		c.current.Next = value
	}

	c.slotIndex++
	if c.slotIndex < len(sampledSlots) {
		return
	}

	c.visited = append(c.visited, c.current)

	if c.current.Next == 0 {
		c.done = true
		return
	}

	c.currentBase = c.current.Next
	c.slotIndex = 0
	c.current = BlockInfo{Base: c.currentBase}
}

func (c *Comp) issue(now sim.VTimeInSec) bool {
	if c.done || c.pendingReqID != "" {
		return false
	}

	addr := c.currentBase + uint64(sampledSlots[c.slotIndex])*csr.SlotBytes

	req := mem.ReadReqBuilder{}.
		WithSendTime(now).
		WithSrc(c.memPort).
		WithDst(c.pipelinePort).
		WithAddress(addr).
		WithByteSize(csr.SlotBytes).
		WithPID(c.pid).
		Build()

	err := c.memPort.Send(req)
	if err != nil {
		return false
	}

	c.pendingReqID = req.ID

	return true
}
