package vtp

import (
	"fmt"

	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"
	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// A Builder can build translation services.
type Builder struct {
	engine            sim.Engine
	freq              sim.Freq
	numPorts          int
	pageTable         vm.PageTable
	log2PageSize      uint64
	latency           int
	maxNumReqInFlight int
	reservedTagMask   int
	filterCapacity    uint
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:              1 * sim.GHz,
		numPorts:          1,
		log2PageSize:      12,
		latency:           10,
		maxNumReqInFlight: 16,
		filterCapacity:    1 << 20,
	}
}

// WithEngine sets the engine to be used by the service.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the service works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithNumPorts sets the number of independent translation ports. Zero-sized
// port pools are not allowed; composers that need no translation ports must
// not instantiate a service at all.
func (b Builder) WithNumPorts(n int) Builder {
	b.numPorts = n
	return b
}

// WithPageTable sets the page table the service consumes.
func (b Builder) WithPageTable(pageTable vm.PageTable) Builder {
	b.pageTable = pageTable
	return b
}

// WithLog2PageSize sets the page size the service works with.
func (b Builder) WithLog2PageSize(n uint64) Builder {
	b.log2PageSize = n
	return b
}

// WithLatency sets the page-walk latency in cycles.
func (b Builder) WithLatency(n int) Builder {
	b.latency = n
	return b
}

// WithMaxNumReqInFlight sets the number of requests that can be concurrently
// processed by the service.
func (b Builder) WithMaxNumReqInFlight(n int) Builder {
	b.maxNumReqInFlight = n
	return b
}

// WithReservedTagMask sets the tag bits that mark traffic generated by this
// instance.
func (b Builder) WithReservedTagMask(mask int) Builder {
	b.reservedTagMask = mask
	return b
}

// WithFilterCapacity sets the capacity of the translation presence filter.
func (b Builder) WithFilterCapacity(capacity uint) Builder {
	b.filterCapacity = capacity
	return b
}

// Build creates a new translation service.
func (b Builder) Build(name string) *Comp {
	if b.numPorts <= 0 {
		panic("vtp: a translation service must own at least one port")
	}

	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.log2PageSize = b.log2PageSize
	c.latency = b.latency
	c.maxRequestsInFlight = b.maxNumReqInFlight
	c.reservedTagMask = b.reservedTagMask
	c.filter = cuckoo.NewFilter(b.filterCapacity)

	if b.pageTable != nil {
		c.pageTable = b.pageTable
	} else {
		c.pageTable = vm.NewPageTable(b.log2PageSize)
	}

	b.createPorts(name, c)

	return c
}

func (b Builder) createPorts(name string, c *Comp) {
	for i := 0; i < b.numPorts; i++ {
		port := sim.NewLimitNumMsgPort(c, 4,
			fmt.Sprintf("%s.Translation%d", name, i))
		c.translationPorts = append(c.translationPorts, port)
		c.AddPort(fmt.Sprintf("Translation%d", i), port)
	}

	c.ctrlPort = sim.NewLimitNumMsgPort(c, 1, name+".Control")
	c.AddPort("Control", c.ctrlPort)
}
