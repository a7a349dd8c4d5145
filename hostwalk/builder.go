package hostwalk

import (
	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"
)

// A Builder can build register-map walkers.
type Builder struct {
	engine       sim.Engine
	freq         sim.Freq
	entryPoint   uint64
	pipelinePort sim.Port
	pid          vm.PID
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq: 1 * sim.GHz,
		pid:  1,
	}
}

// WithEngine sets the engine to be used by the walker.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the walker works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithEntryPoint sets the base address of the first block in the chain.
func (b Builder) WithEntryPoint(addr uint64) Builder {
	b.entryPoint = addr
	return b
}

// WithPipelinePort sets the primary pipeline port reads are sent to.
func (b Builder) WithPipelinePort(p sim.Port) Builder {
	b.pipelinePort = p
	return b
}

// WithPID sets the process ID the walker issues reads under.
func (b Builder) WithPID(pid vm.PID) Builder {
	b.pid = pid
	return b
}

// Build creates a new register-map walker.
func (b Builder) Build(name string) *Comp {
	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.pipelinePort = b.pipelinePort
	c.pid = b.pid
	c.currentBase = b.entryPoint
	c.current = BlockInfo{Base: b.entryPoint}

	c.memPort = sim.NewLimitNumMsgPort(c, 1, name+".MemPort")
	c.AddPort("Mem", c.memPort)

	c.TickLater(0)

	return c
}
