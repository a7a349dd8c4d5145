// Package wro enforces memory ordering on one request/response channel.
// At cache-line granularity, a write is not issued downstream while an older
// write to the same line is in flight, a read waits for older in-flight
// writes to its line, and read responses are released to the requester in
// request order no matter how the fabric completes them.
package wro

import (
	"log"
	"reflect"

	"github.com/sarchlab/akita/v3/mem/mem"
	"github.com/sarchlab/akita/v3/sim"
	"github.com/sarchlab/akita/v3/tracing"

	"github.com/sarchlab/memharness/ctrl"
)

type writeRecord struct {
	reqFromTop *mem.WriteReq
	bottomID   string
	line       uint64
}

type readRecord struct {
	reqFromTop *mem.ReadReq
	bottomID   string
	line       uint64
	done       bool
	data       []byte
}

// Comp is an ordering stage on one channel.
type Comp struct {
	*sim.TickingComponent

	topPort    sim.Port
	bottomPort sim.Port
	ctrlPort   sim.Port

	lowModule      sim.Port
	log2BlockSize  uint64
	numReqPerCycle int

	inflightWrites map[uint64]string
	writeTrack     []*writeRecord
	readOrder      []*readRecord

	readsCompleted  uint64
	writesCompleted uint64

	isPaused bool
}

// TopPort returns the port that accepts the channel to be ordered.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// ReadsCompleted returns the number of reads released in order so far.
func (c *Comp) ReadsCompleted() uint64 {
	return c.readsCompleted
}

// WritesCompleted returns the number of writes completed so far.
func (c *Comp) WritesCompleted() uint64 {
	return c.writesCompleted
}

// Tick updates the state of the stage in one cycle.
func (c *Comp) Tick(now sim.VTimeInSec) bool {
	madeProgress := false

	madeProgress = c.performCtrlReq(now) || madeProgress

	if !c.isPaused {
		for i := 0; i < c.numReqPerCycle; i++ {
			madeProgress = c.releaseReads(now) || madeProgress
		}

		for i := 0; i < c.numReqPerCycle; i++ {
			madeProgress = c.collectBottom(now) || madeProgress
		}

		for i := 0; i < c.numReqPerCycle; i++ {
			madeProgress = c.issue(now) || madeProgress
		}
	}

	return madeProgress
}

// releaseReads completes the oldest read, and only the oldest read, so the
// requester observes completions in request order.
func (c *Comp) releaseReads(now sim.VTimeInSec) bool {
	if len(c.readOrder) == 0 {
		return false
	}

	head := c.readOrder[0]
	if !head.done {
		return false
	}

	rsp := mem.DataReadyRspBuilder{}.
		WithSendTime(now).
		WithSrc(c.topPort).
		WithDst(head.reqFromTop.Src).
		WithRspTo(head.reqFromTop.ID).
		WithData(head.data).
		Build()

	err := c.topPort.Send(rsp)
	if err != nil {
		return false
	}

	c.readOrder = c.readOrder[1:]
	c.readsCompleted++

	tracing.TraceReqComplete(head.reqFromTop, c)

	return true
}

func (c *Comp) collectBottom(now sim.VTimeInSec) bool {
	item := c.bottomPort.Peek()
	if item == nil {
		return false
	}

	switch rsp := item.(type) {
	case *mem.DataReadyRsp:
		return c.collectReadData(now, rsp)
	case *mem.WriteDoneRsp:
		return c.completeWrite(now, rsp)
	default:
		log.Panicf("wro cannot handle respond of type %s",
			reflect.TypeOf(item))
	}

	return true
}

func (c *Comp) collectReadData(now sim.VTimeInSec, rsp *mem.DataReadyRsp) bool {
	for _, r := range c.readOrder {
		if r.bottomID == rsp.RespondTo {
			r.done = true
			r.data = rsp.Data
			c.bottomPort.Retrieve(now)
			return true
		}
	}

	log.Panicf("wro received data for an unknown read %s", rsp.RespondTo)

	return false
}

func (c *Comp) completeWrite(now sim.VTimeInSec, rsp *mem.WriteDoneRsp) bool {
	record := c.findWriteByBottomID(rsp.RespondTo)

	rspToTop := mem.WriteDoneRspBuilder{}.
		WithSendTime(now).
		WithSrc(c.topPort).
		WithDst(record.reqFromTop.Src).
		WithRspTo(record.reqFromTop.ID).
		Build()

	err := c.topPort.Send(rspToTop)
	if err != nil {
		return false
	}

	delete(c.inflightWrites, record.line)
	c.removeWriteByBottomID(rsp.RespondTo)
	c.writesCompleted++
	c.bottomPort.Retrieve(now)

	tracing.TraceReqComplete(record.reqFromTop, c)

	return true
}

func (c *Comp) issue(now sim.VTimeInSec) bool {
	item := c.topPort.Peek()
	if item == nil {
		return false
	}

	switch req := item.(type) {
	case *mem.WriteReq:
		return c.issueWrite(now, req)
	case *mem.ReadReq:
		return c.issueRead(now, req)
	default:
		log.Panicf("wro cannot handle request of type %s",
			reflect.TypeOf(item))
	}

	return true
}

func (c *Comp) issueWrite(now sim.VTimeInSec, req *mem.WriteReq) bool {
	line := c.lineOf(req.Address)
	if _, busy := c.inflightWrites[line]; busy {
		return false
	}

	reqToBottom := mem.WriteReqBuilder{}.
		WithSendTime(now).
		WithSrc(c.bottomPort).
		WithDst(c.lowModule).
		WithAddress(req.Address).
		WithData(req.Data).
		WithDirtyMask(req.DirtyMask).
		WithPID(req.PID).
		Build()

	err := c.bottomPort.Send(reqToBottom)
	if err != nil {
		return false
	}

	c.inflightWrites[line] = reqToBottom.ID
	c.writeTrack = append(c.writeTrack, &writeRecord{
		reqFromTop: req,
		bottomID:   reqToBottom.ID,
		line:       line,
	})
	c.topPort.Retrieve(now)

	tracing.TraceReqReceive(req, c)

	return true
}

func (c *Comp) issueRead(now sim.VTimeInSec, req *mem.ReadReq) bool {
	line := c.lineOf(req.Address)
	if _, busy := c.inflightWrites[line]; busy {
		return false
	}

	reqToBottom := mem.ReadReqBuilder{}.
		WithSendTime(now).
		WithSrc(c.bottomPort).
		WithDst(c.lowModule).
		WithAddress(req.Address).
		WithByteSize(req.AccessByteSize).
		WithPID(req.PID).
		Build()

	err := c.bottomPort.Send(reqToBottom)
	if err != nil {
		return false
	}

	c.readOrder = append(c.readOrder, &readRecord{
		reqFromTop: req,
		bottomID:   reqToBottom.ID,
		line:       line,
	})
	c.topPort.Retrieve(now)

	tracing.TraceReqReceive(req, c)

	return true
}

func (c *Comp) lineOf(addr uint64) uint64 {
	return (addr >> c.log2BlockSize) << c.log2BlockSize
}

func (c *Comp) findWriteByBottomID(id string) *writeRecord {
	for _, r := range c.writeTrack {
		if r.bottomID == id {
			return r
		}
	}
	panic("write record not found")
}

func (c *Comp) removeWriteByBottomID(id string) {
	for i, r := range c.writeTrack {
		if r.bottomID == id {
			c.writeTrack = append(c.writeTrack[:i], c.writeTrack[i+1:]...)
			return
		}
	}
	panic("write record not found")
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
		log.Panicf("wro cannot handle ctrl request of type %s",
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

	c.inflightWrites = make(map[uint64]string)
	c.writeTrack = nil
	c.readOrder = nil
	c.readsCompleted = 0
	c.writesCompleted = 0
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

	for c.bottomPort.Retrieve(now) != nil {
	}

	c.isPaused = false

	return true
}
