// Package xlat wraps one read/write request channel with address translation.
// Requests arriving at the top port carry virtual addresses; requests leaving
// the bottom port carry physical addresses. Translations come from a vtp
// service port. Translation faults complete the affected request with a
// FaultRsp and never stall the channel.
package xlat

import (
	"log"
	"reflect"

	"github.com/sarchlab/akita/v3/mem/mem"
	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"
	"github.com/sarchlab/akita/v3/tracing"

	"github.com/sarchlab/memharness/ctrl"
)

type transaction struct {
	reqFromTop     mem.AccessReq
	translationReq *vm.TranslationReq
}

type reqToBottom struct {
	reqFromTop  mem.AccessReq
	reqToBottom mem.AccessReq
}

// Comp translates the requests flowing through one channel.
type Comp struct {
	*sim.TickingComponent

	topPort         sim.Port
	bottomPort      sim.Port
	translationPort sim.Port
	ctrlPort        sim.Port

	translationProvider sim.Port
	lowModule           sim.Port
	log2PageSize        uint64
	deviceID            uint64
	numReqPerCycle      int
	reservedTagMask     int

	transactions        []*transaction
	inflightReqToBottom []reqToBottom
	faultCount          uint64

	isPaused bool
}

// TopPort returns the port that accepts virtual-address requests.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// FaultCount returns the number of translation faults observed so far.
func (c *Comp) FaultCount() uint64 {
	return c.faultCount
}

// Tick updates the state of the component in one cycle.
func (c *Comp) Tick(now sim.VTimeInSec) bool {
	madeProgress := false

	madeProgress = c.performCtrlReq(now) || madeProgress

	if !c.isPaused {
		for i := 0; i < c.numReqPerCycle; i++ {
			madeProgress = c.respond(now) || madeProgress
		}

		for i := 0; i < c.numReqPerCycle; i++ {
			madeProgress = c.parseTranslation(now) || madeProgress
		}

		for i := 0; i < c.numReqPerCycle; i++ {
			madeProgress = c.translate(now) || madeProgress
		}
	}

	return madeProgress
}

func (c *Comp) translate(now sim.VTimeInSec) bool {
	item := c.topPort.Peek()
	if item == nil {
		return false
	}

	req, ok := item.(mem.AccessReq)
	if !ok {
		log.Panicf("xlat cannot translate request of type %s",
			reflect.TypeOf(item))
	}

	vAddr := req.GetAddress()
	vPageID := c.addrToPageID(vAddr)

	transReq := vm.TranslationReqBuilder{}.
		WithSendTime(now).
		WithSrc(c.translationPort).
		WithDst(c.translationProvider).
		WithPID(req.GetPID()).
		WithVAddr(vPageID).
		WithDeviceID(c.deviceID).
		Build()
	transReq.TrafficClass = c.reservedTagMask

	err := c.translationPort.Send(transReq)
	if err != nil {
		return false
	}

	c.transactions = append(c.transactions, &transaction{
		reqFromTop:     req,
		translationReq: transReq,
	})

	tracing.TraceReqReceive(req, c)
	tracing.TraceReqInitiate(transReq, c, tracing.MsgIDAtReceiver(req, c))

	c.topPort.Retrieve(now)

	return true
}

func (c *Comp) parseTranslation(now sim.VTimeInSec) bool {
	item := c.translationPort.Peek()
	if item == nil {
		return false
	}

	transRsp := item.(*vm.TranslationRsp)
	trans := c.findTranslationByReqID(transRsp.RespondTo)
	if trans == nil {
		c.translationPort.Retrieve(now)
		return true
	}

	if !transRsp.Page.Valid {
		return c.respondFault(now, trans)
	}

	reqFromTop := trans.reqFromTop
	translatedReq := c.createTranslatedReq(now, reqFromTop, transRsp.Page)

	err := c.bottomPort.Send(translatedReq)
	if err != nil {
		return false
	}

	c.inflightReqToBottom = append(c.inflightReqToBottom, reqToBottom{
		reqFromTop:  reqFromTop,
		reqToBottom: translatedReq,
	})
	c.removeTranslation(trans)
	c.translationPort.Retrieve(now)

	tracing.TraceReqFinalize(trans.translationReq, c)
	tracing.TraceReqInitiate(translatedReq, c,
		tracing.MsgIDAtReceiver(reqFromTop, c))

	return true
}

func (c *Comp) respondFault(now sim.VTimeInSec, trans *transaction) bool {
	reqFromTop := trans.reqFromTop
	faultRsp := FaultRspBuilder{}.
		WithSendTime(now).
		WithSrc(c.topPort).
		WithDst(reqFromTop.Meta().Src).
		WithRspTo(reqFromTop.Meta().ID).
		WithVAddr(reqFromTop.GetAddress()).
		Build()

	err := c.topPort.Send(faultRsp)
	if err != nil {
		return false
	}

	c.faultCount++
	c.removeTranslation(trans)
	c.translationPort.Retrieve(now)

	tracing.TraceReqFinalize(trans.translationReq, c)
	tracing.TraceReqComplete(reqFromTop, c)

	return true
}

func (c *Comp) respond(now sim.VTimeInSec) bool {
	item := c.bottomPort.Peek()
	if item == nil {
		return false
	}

	var reqFromTop mem.AccessReq
	var combo reqToBottom
	var rspToTop sim.Msg

	switch rsp := item.(type) {
	case *mem.DataReadyRsp:
		combo = c.findReqToBottomByID(rsp.RespondTo)
		reqFromTop = combo.reqFromTop
		rspToTop = mem.DataReadyRspBuilder{}.
			WithSendTime(now).
			WithSrc(c.topPort).
			WithDst(reqFromTop.Meta().Src).
			WithRspTo(reqFromTop.Meta().ID).
			WithData(rsp.Data).
			Build()
	case *mem.WriteDoneRsp:
		combo = c.findReqToBottomByID(rsp.RespondTo)
		reqFromTop = combo.reqFromTop
		rspToTop = mem.WriteDoneRspBuilder{}.
			WithSendTime(now).
			WithSrc(c.topPort).
			WithDst(reqFromTop.Meta().Src).
			WithRspTo(reqFromTop.Meta().ID).
			Build()
	default:
		log.Panicf("xlat cannot handle respond of type %s",
			reflect.TypeOf(item))
	}

	err := c.topPort.Send(rspToTop)
	if err != nil {
		return false
	}

	c.removeReqToBottomByID(combo.reqToBottom.Meta().ID)
	c.bottomPort.Retrieve(now)

	tracing.TraceReqFinalize(combo.reqToBottom, c)
	tracing.TraceReqComplete(combo.reqFromTop, c)

	return true
}

func (c *Comp) createTranslatedReq(
	now sim.VTimeInSec,
	req mem.AccessReq,
	page vm.Page,
) mem.AccessReq {
	switch req := req.(type) {
	case *mem.ReadReq:
		return c.createTranslatedReadReq(now, req, page)
	case *mem.WriteReq:
		return c.createTranslatedWriteReq(now, req, page)
	default:
		log.Panicf("xlat cannot translate request of type %s",
			reflect.TypeOf(req))
		return nil
	}
}

func (c *Comp) createTranslatedReadReq(
	now sim.VTimeInSec,
	req *mem.ReadReq,
	page vm.Page,
) *mem.ReadReq {
	offset := req.Address % (1 << c.log2PageSize)
	addr := page.PAddr + offset
	return mem.ReadReqBuilder{}.
		WithSendTime(now).
		WithSrc(c.bottomPort).
		WithDst(c.lowModule).
		WithAddress(addr).
		WithByteSize(req.AccessByteSize).
		WithPID(0).
		Build()
}

func (c *Comp) createTranslatedWriteReq(
	now sim.VTimeInSec,
	req *mem.WriteReq,
	page vm.Page,
) *mem.WriteReq {
	offset := req.Address % (1 << c.log2PageSize)
	addr := page.PAddr + offset
	return mem.WriteReqBuilder{}.
		WithSendTime(now).
		WithSrc(c.bottomPort).
		WithDst(c.lowModule).
		WithAddress(addr).
		WithData(req.Data).
		WithDirtyMask(req.DirtyMask).
		WithPID(0).
		Build()
}

func (c *Comp) addrToPageID(addr uint64) uint64 {
	return (addr >> c.log2PageSize) << c.log2PageSize
}

func (c *Comp) findTranslationByReqID(id string) *transaction {
	for _, t := range c.transactions {
		if t.translationReq.ID == id {
			return t
		}
	}
	return nil
}

func (c *Comp) removeTranslation(trans *transaction) {
	for i, t := range c.transactions {
		if t == trans {
			c.transactions = append(
				c.transactions[:i], c.transactions[i+1:]...)
			return
		}
	}
	panic("translation not found")
}

func (c *Comp) findReqToBottomByID(id string) reqToBottom {
	for _, r := range c.inflightReqToBottom {
		if r.reqToBottom.Meta().ID == id {
			return r
		}
	}
	panic("req to bottom not found")
}

func (c *Comp) removeReqToBottomByID(id string) {
	for i, r := range c.inflightReqToBottom {
		if r.reqToBottom.Meta().ID == id {
			c.inflightReqToBottom = append(
				c.inflightReqToBottom[:i],
				c.inflightReqToBottom[i+1:]...)
			return
		}
	}
	panic("req to bottom not found")
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
		log.Panicf("xlat cannot handle ctrl request of type %s",
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

	c.transactions = nil
	c.inflightReqToBottom = nil
	c.faultCount = 0
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

	for c.translationPort.Retrieve(now) != nil {
	}

	c.isPaused = false

	return true
}
