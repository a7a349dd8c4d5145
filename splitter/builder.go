package splitter

import (
	"github.com/sarchlab/akita/v3/sim"
)

// A Builder can build channel splitters.
type Builder struct {
	engine         sim.Engine
	freq           sim.Freq
	csrBase        uint64
	csrSize        uint64
	numReqPerCycle int
	memLowModule   sim.Port
	csrLowModule   sim.Port
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:           1 * sim.GHz,
		numReqPerCycle: 4,
	}
}

// WithEngine sets the engine to be used by the splitter.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the splitter works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithCSRWindow sets the physical address window served by register space.
func (b Builder) WithCSRWindow(base, size uint64) Builder {
	b.csrBase = base
	b.csrSize = size
	return b
}

// WithNumReqPerCycle sets the number of requests routed per cycle.
func (b Builder) WithNumReqPerCycle(n int) Builder {
	b.numReqPerCycle = n
	return b
}

// WithMemLowModule sets the remote port serving fabric traffic.
func (b Builder) WithMemLowModule(p sim.Port) Builder {
	b.memLowModule = p
	return b
}

// WithCSRLowModule sets the remote port serving register traffic.
func (b Builder) WithCSRLowModule(p sim.Port) Builder {
	b.csrLowModule = p
	return b
}

// Build creates a new channel splitter.
func (b Builder) Build(name string) *Comp {
	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.csrBase = b.csrBase
	c.csrSize = b.csrSize
	c.numReqPerCycle = b.numReqPerCycle
	c.memLowModule = b.memLowModule
	c.csrLowModule = b.csrLowModule

	b.createPorts(name, c)

	return c
}

func (b Builder) createPorts(name string, c *Comp) {
	c.topPort = sim.NewLimitNumMsgPort(c, b.numReqPerCycle, name+".TopPort")
	c.AddPort("Top", c.topPort)

	c.memPort = sim.NewLimitNumMsgPort(c, b.numReqPerCycle, name+".MemPort")
	c.AddPort("Mem", c.memPort)

	c.csrPort = sim.NewLimitNumMsgPort(c, b.numReqPerCycle, name+".CSRPort")
	c.AddPort("CSR", c.csrPort)

	c.ctrlPort = sim.NewLimitNumMsgPort(c, 1, name+".ControlPort")
	c.AddPort("Control", c.ctrlPort)
}
