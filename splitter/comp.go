// Package splitter demultiplexes one physical-address channel onto two
// destinations. Requests that fall inside the register window go to the
// register-space port; everything else goes to the memory fabric. Responses
// from either side are routed back to the original requester with the
// original request ID.
package splitter

import (
	"log"
	"reflect"

	"github.com/sarchlab/akita/v3/mem/mem"
	"github.com/sarchlab/akita/v3/sim"
	"github.com/sarchlab/akita/v3/tracing"

	"github.com/sarchlab/memharness/ctrl"
)

type inflightPair struct {
	reqFromTop  mem.AccessReq
	reqToBottom mem.AccessReq
}

// Comp routes requests by physical address range.
type Comp struct {
	*sim.TickingComponent

	topPort  sim.Port
	memPort  sim.Port
	csrPort  sim.Port
	ctrlPort sim.Port

	memLowModule sim.Port
	csrLowModule sim.Port

	csrBase uint64
	csrSize uint64

	numReqPerCycle int

	inflight []inflightPair

	isPaused bool
}

// TopPort returns the port that accepts requests to be routed.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// Tick updates the state of the component in one cycle.
func (c *Comp) Tick(now sim.VTimeInSec) bool {
	madeProgress := false

	madeProgress = c.performCtrlReq(now) || madeProgress

	if !c.isPaused {
		for i := 0; i < c.numReqPerCycle; i++ {
			madeProgress = c.respond(now, c.memPort) || madeProgress
		}

		for i := 0; i < c.numReqPerCycle; i++ {
			madeProgress = c.respond(now, c.csrPort) || madeProgress
		}

		for i := 0; i < c.numReqPerCycle; i++ {
			madeProgress = c.route(now) || madeProgress
		}
	}

	return madeProgress
}

func (c *Comp) route(now sim.VTimeInSec) bool {
	item := c.topPort.Peek()
	if item == nil {
		return false
	}

	req, ok := item.(mem.AccessReq)
	if !ok {
		log.Panicf("splitter cannot route request of type %s",
			reflect.TypeOf(item))
	}

	srcPort, dstPort := c.memPort, c.memLowModule
	if c.inCSRWindow(req.GetAddress()) {
		srcPort, dstPort = c.csrPort, c.csrLowModule
	}

	reqToBottom := c.duplicateReq(now, req, srcPort, dstPort)

	err := srcPort.Send(reqToBottom)
	if err != nil {
		return false
	}

	c.inflight = append(c.inflight, inflightPair{
		reqFromTop:  req,
		reqToBottom: reqToBottom,
	})
	c.topPort.Retrieve(now)

	tracing.TraceReqReceive(req, c)
	tracing.TraceReqInitiate(reqToBottom, c, tracing.MsgIDAtReceiver(req, c))

	return true
}

func (c *Comp) respond(now sim.VTimeInSec, from sim.Port) bool {
	item := from.Peek()
	if item == nil {
		return false
	}

	var pair inflightPair
	var rspToTop sim.Msg

	switch rsp := item.(type) {
	case *mem.DataReadyRsp:
		pair = c.findPairByBottomID(rsp.RespondTo)
		rspToTop = mem.DataReadyRspBuilder{}.
			WithSendTime(now).
			WithSrc(c.topPort).
			WithDst(pair.reqFromTop.Meta().Src).
			WithRspTo(pair.reqFromTop.Meta().ID).
			WithData(rsp.Data).
			Build()
	case *mem.WriteDoneRsp:
		pair = c.findPairByBottomID(rsp.RespondTo)
		rspToTop = mem.WriteDoneRspBuilder{}.
			WithSendTime(now).
			WithSrc(c.topPort).
			WithDst(pair.reqFromTop.Meta().Src).
			WithRspTo(pair.reqFromTop.Meta().ID).
			Build()
	default:
		log.Panicf("splitter cannot handle respond of type %s",
			reflect.TypeOf(item))
	}

	err := c.topPort.Send(rspToTop)
	if err != nil {
		return false
	}

	c.removePairByBottomID(pair.reqToBottom.Meta().ID)
	from.Retrieve(now)

	tracing.TraceReqFinalize(pair.reqToBottom, c)
	tracing.TraceReqComplete(pair.reqFromTop, c)

	return true
}

func (c *Comp) duplicateReq(
	now sim.VTimeInSec,
	req mem.AccessReq,
	src, dst sim.Port,
) mem.AccessReq {
	switch req := req.(type) {
	case *mem.ReadReq:
		return mem.ReadReqBuilder{}.
			WithSendTime(now).
			WithSrc(src).
			WithDst(dst).
			WithAddress(req.Address).
			WithByteSize(req.AccessByteSize).
			WithPID(req.PID).
			Build()
	case *mem.WriteReq:
		return mem.WriteReqBuilder{}.
			WithSendTime(now).
			WithSrc(src).
			WithDst(dst).
			WithAddress(req.Address).
			WithData(req.Data).
			WithDirtyMask(req.DirtyMask).
			WithPID(req.PID).
			Build()
	default:
		log.Panicf("splitter cannot duplicate request of type %s",
			reflect.TypeOf(req))
		return nil
	}
}

func (c *Comp) inCSRWindow(addr uint64) bool {
	return addr >= c.csrBase && addr < c.csrBase+c.csrSize
}

func (c *Comp) findPairByBottomID(id string) inflightPair {
	for _, p := range c.inflight {
		if p.reqToBottom.Meta().ID == id {
			return p
		}
	}
	panic("inflight pair not found")
}

func (c *Comp) removePairByBottomID(id string) {
	for i, p := range c.inflight {
		if p.reqToBottom.Meta().ID == id {
			c.inflight = append(c.inflight[:i], c.inflight[i+1:]...)
			return
		}
	}
	panic("inflight pair not found")
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
		log.Panicf("splitter cannot handle ctrl request of type %s",
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

	for c.memPort.Retrieve(now) != nil {
	}

	for c.csrPort.Retrieve(now) != nil {
	}

	c.isPaused = false

	return true
}
