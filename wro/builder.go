package wro

import (
	"github.com/sarchlab/akita/v3/sim"
)

// A Builder can build ordering stages.
type Builder struct {
	engine         sim.Engine
	freq           sim.Freq
	log2BlockSize  uint64
	numReqPerCycle int
	lowModule      sim.Port
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:           1 * sim.GHz,
		log2BlockSize:  6,
		numReqPerCycle: 4,
	}
}

// WithEngine sets the engine to be used by the stage.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the stage works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLog2BlockSize sets the granularity at which ordering is enforced.
func (b Builder) WithLog2BlockSize(n uint64) Builder {
	b.log2BlockSize = n
	return b
}

// WithNumReqPerCycle sets the number of requests processed per cycle.
func (b Builder) WithNumReqPerCycle(n int) Builder {
	b.numReqPerCycle = n
	return b
}

// WithLowModule sets the remote port that consumes ordered requests.
func (b Builder) WithLowModule(p sim.Port) Builder {
	b.lowModule = p
	return b
}

// Build creates a new ordering stage.
func (b Builder) Build(name string) *Comp {
	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.log2BlockSize = b.log2BlockSize
	c.numReqPerCycle = b.numReqPerCycle
	c.lowModule = b.lowModule
	c.inflightWrites = make(map[uint64]string)

	b.createPorts(name, c)

	return c
}

func (b Builder) createPorts(name string, c *Comp) {
	c.topPort = sim.NewLimitNumMsgPort(c, b.numReqPerCycle, name+".TopPort")
	c.AddPort("Top", c.topPort)

	c.bottomPort = sim.NewLimitNumMsgPort(c, b.numReqPerCycle,
		name+".BottomPort")
	c.AddPort("Bottom", c.bottomPort)

	c.ctrlPort = sim.NewLimitNumMsgPort(c, 1, name+".ControlPort")
	c.AddPort("Control", c.ctrlPort)
}
