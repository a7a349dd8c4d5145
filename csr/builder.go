package csr

import (
	"github.com/sarchlab/akita/v3/sim"
)

// A Builder can build register files.
type Builder struct {
	engine  sim.Engine
	freq    sim.Freq
	latency int
	blocks  []*Block
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:    1 * sim.GHz,
		latency: 2,
	}
}

// WithEngine sets the engine to be used by the register file.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the register file works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLatency sets the access latency in cycles.
func (b Builder) WithLatency(n int) Builder {
	b.latency = n
	return b
}

// WithBlocks sets the blocks served by the register file, in chain order.
// The blocks must already be laid out in the address space.
func (b Builder) WithBlocks(blocks []*Block) Builder {
	b.blocks = blocks
	return b
}

// Build creates a new register file.
func (b Builder) Build(name string) *Comp {
	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.latency = b.latency
	c.blocks = b.blocks

	c.topPort = sim.NewLimitNumMsgPort(c, 4, name+".TopPort")
	c.AddPort("Top", c.topPort)

	c.ctrlPort = sim.NewLimitNumMsgPort(c, 1, name+".ControlPort")
	c.AddPort("Control", c.ctrlPort)

	return c
}
