// Package csr aggregates the control/status register blocks of the harness
// into one address-mapped 64-bit register file. Blocks are chained through a
// next-block-base slot so a host can discover the whole map from one entry
// point. Reads of unmapped addresses return zeros; writes to unmapped or
// read-only slots are dropped without raising a fault.
package csr

import (
	"log"
	"reflect"

	"github.com/sarchlab/akita/v3/mem/mem"
	"github.com/sarchlab/akita/v3/sim"
	"github.com/sarchlab/akita/v3/tracing"

	"github.com/sarchlab/memharness/ctrl"
)

type reqInFlight struct {
	req       mem.AccessReq
	cycleLeft int
}

// Comp serves reads and writes on the register window.
type Comp struct {
	*sim.TickingComponent

	topPort  sim.Port
	ctrlPort sim.Port

	latency int
	blocks  []*Block

	inflight []*reqInFlight

	isPaused bool
}

// TopPort returns the port that accepts register reads and writes.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// Blocks returns the blocks in chain order.
func (c *Comp) Blocks() []*Block {
	return c.blocks
}

// Tick updates the state of the register file in one cycle.
func (c *Comp) Tick(now sim.VTimeInSec) bool {
	madeProgress := false

	madeProgress = c.performCtrlReq(now) || madeProgress

	if !c.isPaused {
		madeProgress = c.countDown() || madeProgress
		madeProgress = c.respond(now) || madeProgress
		madeProgress = c.accept(now) || madeProgress
	}

	return madeProgress
}

func (c *Comp) countDown() bool {
	madeProgress := false

	for _, r := range c.inflight {
		if r.cycleLeft > 0 {
			r.cycleLeft--
			madeProgress = true
		}
	}

	return madeProgress
}

// respond completes inflight accesses in arrival order so a respond always
// carries the ID of the request it answers, no matter how accesses overlap.
func (c *Comp) respond(now sim.VTimeInSec) bool {
	if len(c.inflight) == 0 {
		return false
	}

	head := c.inflight[0]
	if head.cycleLeft > 0 {
		return false
	}

	var rsp sim.Msg

	switch req := head.req.(type) {
	case *mem.ReadReq:
		rsp = mem.DataReadyRspBuilder{}.
			WithSendTime(now).
			WithSrc(c.topPort).
			WithDst(req.Src).
			WithRspTo(req.ID).
			WithData(c.read(req.Address, req.AccessByteSize)).
			Build()
	case *mem.WriteReq:
		c.write(req.Address, req.Data)
		rsp = mem.WriteDoneRspBuilder{}.
			WithSendTime(now).
			WithSrc(c.topPort).
			WithDst(req.Src).
			WithRspTo(req.ID).
			Build()
	default:
		log.Panicf("csr cannot handle request of type %s",
			reflect.TypeOf(head.req))
	}

	err := c.topPort.Send(rsp)
	if err != nil {
		return false
	}

	c.inflight = c.inflight[1:]

	tracing.TraceReqComplete(head.req, c)

	return true
}

func (c *Comp) accept(now sim.VTimeInSec) bool {
	item := c.topPort.Peek()
	if item == nil {
		return false
	}

	req, ok := item.(mem.AccessReq)
	if !ok {
		log.Panicf("csr cannot handle request of type %s",
			reflect.TypeOf(item))
	}

	c.inflight = append(c.inflight, &reqInFlight{
		req:       req,
		cycleLeft: c.latency,
	})
	c.topPort.Retrieve(now)

	tracing.TraceReqReceive(req, c)

	return true
}

func (c *Comp) read(addr, byteSize uint64) []byte {
	data := make([]byte, byteSize)

	for i := uint64(0); i < byteSize; i++ {
		data[i] = c.readByte(addr + i)
	}

	return data
}

func (c *Comp) readByte(addr uint64) byte {
	block := c.blockAt(addr)
	if block == nil {
		return 0
	}

	offset := addr - block.base
	slot := int(offset / SlotBytes)
	shift := (offset % SlotBytes) * 8

	return byte(block.ReadSlot(slot) >> shift)
}

func (c *Comp) write(addr uint64, data []byte) {
	for i, b := range data {
		c.writeByte(addr+uint64(i), b)
	}
}

func (c *Comp) writeByte(addr uint64, value byte) {
	block := c.blockAt(addr)
	if block == nil {
		return
	}

	offset := addr - block.base
	slot := int(offset / SlotBytes)
	shift := (offset % SlotBytes) * 8

	old := block.ReadSlot(slot)
	updated := old&^(uint64(0xff)<<shift) | uint64(value)<<shift
	block.WriteSlot(slot, updated)
}

func (c *Comp) blockAt(addr uint64) *Block {
	for _, b := range c.blocks {
		if b.contains(addr) {
			return b
		}
	}

	return nil
}

func (c *Comp) performCtrlReq(now sim.VTimeInSec) bool {
	item := c.ctrlPort.Peek()
	if item == nil {
		return false
	}

	switch req := item.(type) {
	case *ctrl.ResetReq:
		return c.handleReset(now, req)
	case *ctrl.RestartReq:
		return c.handleRestart(now, req)
	default:
		log.Panicf("csr cannot handle ctrl request of type %s",
			reflect.TypeOf(item))
	}

	return true
}

func (c *Comp) handleReset(now sim.VTimeInSec, req *ctrl.ResetReq) bool {
	rsp := ctrl.ResetRspBuilder{}.
		WithSendTime(now).
		WithSrc(c.ctrlPort).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()

	err := c.ctrlPort.Send(rsp)
	if err != nil {
		return false
	}

	c.ctrlPort.Retrieve(now)

	c.inflight = nil
	c.isPaused = true

	return true
}

func (c *Comp) handleRestart(now sim.VTimeInSec, req *ctrl.RestartReq) bool {
	rsp := ctrl.RestartRspBuilder{}.
		WithSendTime(now).
		WithSrc(c.ctrlPort).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()

	err := c.ctrlPort.Send(rsp)
	if err != nil {
		return false
	}

	c.ctrlPort.Retrieve(now)

	for c.topPort.Retrieve(now) != nil {
	}

	c.isPaused = false

	return true
}
