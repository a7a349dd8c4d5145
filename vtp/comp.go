// Package vtp provides a virtual-to-physical translation service that serves
// a fixed set of independent translation ports from one shared page table.
package vtp

import (
	"encoding/binary"
	"log"
	"reflect"

	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"
	"github.com/sarchlab/akita/v3/tracing"
	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/sarchlab/memharness/ctrl"
)

type walkingTranslation struct {
	req       *vm.TranslationReq
	portID    int
	cycleLeft int
}

// Comp is a translation service. Each translation port is an independent
// request context; a fault on one port never stalls another. Lookup state
// (the page table and the presence filter) is shared by all ports and is
// mutated only by the service itself.
type Comp struct {
	*sim.TickingComponent

	translationPorts []sim.Port
	ctrlPort         sim.Port

	pageTable           vm.PageTable
	log2PageSize        uint64
	latency             int
	maxRequestsInFlight int
	reservedTagMask     int

	filter  *cuckoo.Filter
	walking []walkingTranslation

	isPaused bool
}

// NumPorts returns the number of translation ports the service owns.
func (c *Comp) NumPorts() int {
	return len(c.translationPorts)
}

// TranslationPort returns the port with the given index.
func (c *Comp) TranslationPort(i int) sim.Port {
	return c.translationPorts[i]
}

// ReservedTagMask returns the tag bits this instance stamps on the traffic it
// generates. Two instances bound to the same pipeline must not share bits.
func (c *Comp) ReservedTagMask() int {
	return c.reservedTagMask
}

// Tick updates the service state in one cycle.
func (c *Comp) Tick(now sim.VTimeInSec) bool {
	madeProgress := false

	madeProgress = c.performCtrlReq(now) || madeProgress

	if !c.isPaused {
		madeProgress = c.walk(now) || madeProgress
		for i := range c.translationPorts {
			madeProgress = c.parsePort(now, i) || madeProgress
		}
	}

	return madeProgress
}

func (c *Comp) parsePort(now sim.VTimeInSec, portID int) bool {
	if len(c.walking) >= c.maxRequestsInFlight {
		return false
	}

	port := c.translationPorts[portID]
	item := port.Peek()
	if item == nil {
		return false
	}

	req, ok := item.(*vm.TranslationReq)
	if !ok {
		log.Panicf("vtp cannot handle request of type %s",
			reflect.TypeOf(item))
	}

	port.Retrieve(now)
	tracing.TraceReqReceive(req, c)

	c.walking = append(c.walking, walkingTranslation{
		req:       req,
		portID:    portID,
		cycleLeft: c.walkCycles(req),
	})

	return true
}

// walkCycles returns the number of cycles a lookup takes. A hit in the
// presence filter is answered at a single cycle; everything else pays the
// full walk latency.
func (c *Comp) walkCycles(req *vm.TranslationReq) int {
	if c.filter.Lookup(encodeVAddrPID(c.pageAlign(req.VAddr), req.PID)) {
		return 1
	}

	return c.latency
}

func (c *Comp) walk(now sim.VTimeInSec) bool {
	madeProgress := false
	remaining := c.walking[:0]

	for i := 0; i < len(c.walking); i++ {
		w := &c.walking[i]

		if w.cycleLeft > 0 {
			w.cycleLeft--
			madeProgress = true
			remaining = append(remaining, *w)
			continue
		}

		if c.respond(now, w) {
			madeProgress = true
		} else {
			remaining = append(remaining, *w)
		}
	}

	c.walking = remaining

	return madeProgress
}

func (c *Comp) respond(now sim.VTimeInSec, w *walkingTranslation) bool {
	vAddr := c.pageAlign(w.req.VAddr)
	page, found := c.pageTable.Find(w.req.PID, vAddr)
	if !found || !page.Valid {
		page = vm.Page{
			PID:      w.req.PID,
			VAddr:    vAddr,
			PageSize: 1 << c.log2PageSize,
			Valid:    false,
		}
	}

	port := c.translationPorts[w.portID]
	rsp := vm.TranslationRspBuilder{}.
		WithSendTime(now).
		WithSrc(port).
		WithDst(w.req.Src).
		WithRspTo(w.req.ID).
		WithPage(page).
		Build()
	rsp.TrafficClass = c.reservedTagMask

	err := port.Send(rsp)
	if err != nil {
		return false
	}

	if page.Valid {
		c.recordPresence(page)
	}

	tracing.TraceReqComplete(w.req, c)

	return true
}

func (c *Comp) recordPresence(page vm.Page) {
	key := encodeVAddrPID(page.VAddr, page.PID)
	if c.filter.Lookup(key) {
		return
	}

	if !c.filter.Insert(key) {
		c.filter.Reset()
		c.filter.Insert(key)
	}
}

func (c *Comp) pageAlign(vAddr uint64) uint64 {
	return (vAddr >> c.log2PageSize) << c.log2PageSize
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
		log.Panicf("vtp cannot handle ctrl request of type %s",
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

	c.walking = nil
	c.filter.Reset()
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

	for _, port := range c.translationPorts {
		for port.Retrieve(now) != nil {
		}
	}

	c.isPaused = false

	return true
}

func encodeVAddrPID(vAddr uint64, pid vm.PID) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint64(buf[0:8], vAddr)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(pid))
	return buf
}
