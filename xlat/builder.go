package xlat

import (
	"github.com/sarchlab/akita/v3/sim"
)

// A Builder can build translating channel wrappers.
type Builder struct {
	engine              sim.Engine
	freq                sim.Freq
	log2PageSize        uint64
	deviceID            uint64
	numReqPerCycle      int
	reservedTagMask     int
	translationProvider sim.Port
	lowModule           sim.Port
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:           1 * sim.GHz,
		log2PageSize:   12,
		numReqPerCycle: 4,
	}
}

// WithEngine sets the engine to be used by the wrapper.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the wrapper works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLog2PageSize sets the page size the wrapper works with.
func (b Builder) WithLog2PageSize(n uint64) Builder {
	b.log2PageSize = n
	return b
}

// WithDeviceID sets the device ID carried by translation requests.
func (b Builder) WithDeviceID(id uint64) Builder {
	b.deviceID = id
	return b
}

// WithNumReqPerCycle sets the number of requests processed per cycle.
func (b Builder) WithNumReqPerCycle(n int) Builder {
	b.numReqPerCycle = n
	return b
}

// WithReservedTagMask sets the tag bits stamped on internally generated
// translation requests.
func (b Builder) WithReservedTagMask(mask int) Builder {
	b.reservedTagMask = mask
	return b
}

// WithTranslationProvider sets the remote vtp port that serves translations.
func (b Builder) WithTranslationProvider(p sim.Port) Builder {
	b.translationProvider = p
	return b
}

// WithLowModule sets the remote port that consumes translated requests.
func (b Builder) WithLowModule(p sim.Port) Builder {
	b.lowModule = p
	return b
}

// Build creates a new translating channel wrapper.
func (b Builder) Build(name string) *Comp {
	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.log2PageSize = b.log2PageSize
	c.deviceID = b.deviceID
	c.numReqPerCycle = b.numReqPerCycle
	c.reservedTagMask = b.reservedTagMask
	c.translationProvider = b.translationProvider
	c.lowModule = b.lowModule

	b.createPorts(name, c)

	return c
}

func (b Builder) createPorts(name string, c *Comp) {
	c.topPort = sim.NewLimitNumMsgPort(c, b.numReqPerCycle, name+".TopPort")
	c.AddPort("Top", c.topPort)

	c.bottomPort = sim.NewLimitNumMsgPort(c, b.numReqPerCycle,
		name+".BottomPort")
	c.AddPort("Bottom", c.bottomPort)

	c.translationPort = sim.NewLimitNumMsgPort(c, b.numReqPerCycle,
		name+".TranslationPort")
	c.AddPort("Translation", c.translationPort)

	c.ctrlPort = sim.NewLimitNumMsgPort(c, 1, name+".ControlPort")
	c.AddPort("Control", c.ctrlPort)
}
