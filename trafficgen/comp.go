// Package trafficgen provides the traffic-generating engines that drive the
// harness. An engine issues a randomized mix of reads and writes over virtual
// addresses, either on one combined channel (the primary ordered path) or on
// a split read/write port pair (a secondary port group). Completions may
// arrive out of order; they are correlated by request ID. Read data is
// verified against the last completed write to the same address. Translation
// faults are counted and do not stop the run.
package trafficgen

import (
	"bytes"
	"log"
	"math/rand"
	"reflect"

	"github.com/sarchlab/akita/v3/mem/mem"
	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"

	"github.com/sarchlab/memharness/csr"
	"github.com/sarchlab/memharness/xlat"
)

type access struct {
	isRead bool
	addr   uint64
	data   []byte
	sentAt sim.VTimeInSec
}

// Comp is one traffic-generating engine.
type Comp struct {
	*sim.TickingComponent

	readPort  sim.Port
	writePort sim.Port
	readDst   sim.Port
	writeDst  sim.Port

	pid            vm.PID
	rand           *rand.Rand
	numAccesses    int
	writeFraction  float64
	loAddr, hiAddr uint64
	accessByteSize uint64
	maxInflight    int

	issued        int
	inflight      map[string]*access
	pendingReads  map[uint64]int
	pendingWrites map[uint64]int
	memory        map[uint64][]byte

	readsDone     uint64
	writesDone    uint64
	faultCount    uint64
	mismatchCount uint64
	latencies     []float64
}

// ReadPort returns the port read traffic leaves from.
func (c *Comp) ReadPort() sim.Port {
	return c.readPort
}

// WritePort returns the port write traffic leaves from. In combined mode it
// is the same port as ReadPort.
func (c *Comp) WritePort() sim.Port {
	return c.writePort
}

// Done reports whether all accesses have been issued and completed.
func (c *Comp) Done() bool {
	return c.issued == c.numAccesses && len(c.inflight) == 0
}

// ReadsDone returns the number of completed reads.
func (c *Comp) ReadsDone() uint64 {
	return c.readsDone
}

// WritesDone returns the number of completed writes.
func (c *Comp) WritesDone() uint64 {
	return c.writesDone
}

// FaultCount returns the number of accesses completed by translation faults.
func (c *Comp) FaultCount() uint64 {
	return c.faultCount
}

// MismatchCount returns the number of reads that returned unexpected data.
func (c *Comp) MismatchCount() uint64 {
	return c.mismatchCount
}

// BindBlock exposes the engine's live counters through its register block.
func (c *Comp) BindBlock(block *csr.Block) {
	block.SetDynamic(csr.SlotFirstFree+1, func() uint64 { return c.readsDone })
	block.SetDynamic(csr.SlotFirstFree+2, func() uint64 { return c.writesDone })
	block.SetDynamic(csr.SlotFirstFree+3,
		func() uint64 { return c.mismatchCount })
}

// Tick updates the state of the engine in one cycle.
func (c *Comp) Tick(now sim.VTimeInSec) bool {
	madeProgress := false

	madeProgress = c.collect(now, c.readPort) || madeProgress
	if c.writePort != c.readPort {
		madeProgress = c.collect(now, c.writePort) || madeProgress
	}
	madeProgress = c.issue(now) || madeProgress

	return madeProgress
}

func (c *Comp) collect(now sim.VTimeInSec, port sim.Port) bool {
	item := port.Peek()
	if item == nil {
		return false
	}

	switch rsp := item.(type) {
	case *mem.DataReadyRsp:
		c.completeRead(now, rsp)
	case *mem.WriteDoneRsp:
		c.completeWrite(now, rsp)
	case *xlat.FaultRsp:
		c.completeFault(rsp)
	default:
		log.Panicf("trafficgen cannot handle respond of type %s",
			reflect.TypeOf(item))
	}

	port.Retrieve(now)

	return true
}

func (c *Comp) completeRead(now sim.VTimeInSec, rsp *mem.DataReadyRsp) {
	a := c.mustFindAccess(rsp.RespondTo)

	expected, known := c.memory[a.addr]
	if known && c.pendingWrites[a.addr] == 0 &&
		!bytes.Equal(expected, rsp.Data) {
		c.mismatchCount++
	}

	c.readsDone++
	c.pendingReads[a.addr]--
	c.latencies = append(c.latencies, float64(now-a.sentAt))
	delete(c.inflight, rsp.RespondTo)
}

func (c *Comp) completeWrite(now sim.VTimeInSec, rsp *mem.WriteDoneRsp) {
	a := c.mustFindAccess(rsp.RespondTo)

	c.memory[a.addr] = a.data
	c.pendingWrites[a.addr]--
	c.writesDone++
	c.latencies = append(c.latencies, float64(now-a.sentAt))
	delete(c.inflight, rsp.RespondTo)
}

func (c *Comp) completeFault(rsp *xlat.FaultRsp) {
	a := c.mustFindAccess(rsp.RespondTo)

	if a.isRead {
		c.pendingReads[a.addr]--
	} else {
		c.pendingWrites[a.addr]--
	}

	c.faultCount++
	delete(c.inflight, rsp.RespondTo)
}

func (c *Comp) mustFindAccess(id string) *access {
	a, found := c.inflight[id]
	if !found {
		log.Panicf("trafficgen received a respond to an unknown request %s",
			id)
	}

	return a
}

func (c *Comp) issue(now sim.VTimeInSec) bool {
	if c.issued >= c.numAccesses || len(c.inflight) >= c.maxInflight {
		return false
	}

	// Same-address accesses are never overlapped in flight. The primary path
	// would order them anyway; the secondary port pairs give no such
	// guarantee, and read-back verification needs one stable expected value.
	addr := c.randomAddr()
	if c.rand.Float64() < c.writeFraction {
		if c.pendingWrites[addr] > 0 || c.pendingReads[addr] > 0 {
			return false
		}

		return c.issueWrite(now, addr)
	}

	if c.pendingWrites[addr] > 0 {
		return false
	}

	return c.issueRead(now, addr)
}

func (c *Comp) randomAddr() uint64 {
	span := (c.hiAddr - c.loAddr) / c.accessByteSize

	return c.loAddr + uint64(c.rand.Int63n(int64(span)))*c.accessByteSize
}

func (c *Comp) issueRead(now sim.VTimeInSec, addr uint64) bool {
	req := mem.ReadReqBuilder{}.
		WithSendTime(now).
		WithSrc(c.readPort).
		WithDst(c.readDst).
		WithAddress(addr).
		WithByteSize(c.accessByteSize).
		WithPID(c.pid).
		Build()

	err := c.readPort.Send(req)
	if err != nil {
		return false
	}

	c.inflight[req.ID] = &access{isRead: true, addr: addr, sentAt: now}
	c.pendingReads[addr]++
	c.issued++

	return true
}

func (c *Comp) issueWrite(now sim.VTimeInSec, addr uint64) bool {
	data := make([]byte, c.accessByteSize)
	c.rand.Read(data)

	req := mem.WriteReqBuilder{}.
		WithSendTime(now).
		WithSrc(c.writePort).
		WithDst(c.writeDst).
		WithAddress(addr).
		WithData(data).
		WithPID(c.pid).
		Build()

	err := c.writePort.Send(req)
	if err != nil {
		return false
	}

	c.inflight[req.ID] = &access{addr: addr, data: data, sentAt: now}
	c.pendingWrites[addr]++
	c.issued++

	return true
}
