package trafficgen

import (
	"math/rand"

	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"
)

// A Builder can build traffic-generating engines.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq

	combinedDst sim.Port
	readDst     sim.Port
	writeDst    sim.Port

	pid            vm.PID
	seed           int64
	numAccesses    int
	writeFraction  float64
	loAddr, hiAddr uint64
	accessByteSize uint64
	maxInflight    int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:           1 * sim.GHz,
		pid:            1,
		seed:           1,
		numAccesses:    1024,
		writeFraction:  0.3,
		loAddr:         0,
		hiAddr:         1 << 20,
		accessByteSize: 8,
		maxInflight:    16,
	}
}

// WithEngine sets the engine to be used by the traffic generator.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the traffic generator works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithCombinedPort makes the engine drive one combined read/write channel.
func (b Builder) WithCombinedPort(dst sim.Port) Builder {
	b.combinedDst = dst
	b.readDst = nil
	b.writeDst = nil
	return b
}

// WithSplitPorts makes the engine drive a split read/write port pair.
func (b Builder) WithSplitPorts(readDst, writeDst sim.Port) Builder {
	b.combinedDst = nil
	b.readDst = readDst
	b.writeDst = writeDst
	return b
}

// WithPID sets the process ID the engine issues accesses under.
func (b Builder) WithPID(pid vm.PID) Builder {
	b.pid = pid
	return b
}

// WithSeed sets the random seed of the access pattern.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithNumAccesses sets the number of accesses to issue.
func (b Builder) WithNumAccesses(n int) Builder {
	b.numAccesses = n
	return b
}

// WithWriteFraction sets the fraction of accesses that are writes.
func (b Builder) WithWriteFraction(f float64) Builder {
	b.writeFraction = f
	return b
}

// WithAddressRange sets the virtual address range accesses fall in.
func (b Builder) WithAddressRange(lo, hi uint64) Builder {
	b.loAddr = lo
	b.hiAddr = hi
	return b
}

// WithAccessByteSize sets the size of each access.
func (b Builder) WithAccessByteSize(n uint64) Builder {
	b.accessByteSize = n
	return b
}

// WithMaxInflight sets the number of accesses kept in flight.
func (b Builder) WithMaxInflight(n int) Builder {
	b.maxInflight = n
	return b
}

// Build creates a new traffic-generating engine.
func (b Builder) Build(name string) *Comp {
	if b.combinedDst == nil && (b.readDst == nil || b.writeDst == nil) {
		panic("trafficgen: an engine needs a combined port or a port pair")
	}

	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.pid = b.pid
	c.rand = rand.New(rand.NewSource(b.seed))
	c.numAccesses = b.numAccesses
	c.writeFraction = b.writeFraction
	c.loAddr = b.loAddr
	c.hiAddr = b.hiAddr
	c.accessByteSize = b.accessByteSize
	c.maxInflight = b.maxInflight

	c.inflight = make(map[string]*access)
	c.pendingReads = make(map[uint64]int)
	c.pendingWrites = make(map[uint64]int)
	c.memory = make(map[uint64][]byte)

	b.createPorts(name, c)

	c.TickLater(0)

	return c
}

func (b Builder) createPorts(name string, c *Comp) {
	if b.combinedDst != nil {
		port := sim.NewLimitNumMsgPort(c, 4, name+".MemPort")
		c.AddPort("Mem", port)
		c.readPort = port
		c.writePort = port
		c.readDst = b.combinedDst
		c.writeDst = b.combinedDst
		return
	}

	c.readPort = sim.NewLimitNumMsgPort(c, 4, name+".ReadPort")
	c.AddPort("Read", c.readPort)
	c.writePort = sim.NewLimitNumMsgPort(c, 4, name+".WritePort")
	c.AddPort("Write", c.writePort)
	c.readDst = b.readDst
	c.writeDst = b.writeDst
}
