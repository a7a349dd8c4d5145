package harness

import (
	"fmt"

	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"

	"github.com/sarchlab/memharness/csr"
	"github.com/sarchlab/memharness/splitter"
	"github.com/sarchlab/memharness/vtp"
	"github.com/sarchlab/memharness/wro"
	"github.com/sarchlab/memharness/xlat"
)

// A Builder can build harnesses.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
	name   string

	numSecondaryPortGroups int
	pageTable              vm.PageTable
	fabricPort             sim.Port
	pid                    vm.PID

	csrBase    uint64
	identityLo uint64
	identityHi uint64

	primaryTagMask   int
	secondaryTagMask int

	log2PageSize       uint64
	log2BlockSize      uint64
	translationLatency int
	csrLatency         int
	numReqPerCycle     int

	controlBlockSlots int
	engineBlockSlots  int
	connBufCapacity   int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:               1 * sim.GHz,
		pid:                1,
		csrBase:            0x1_0000_0000,
		identityLo:         DefaultIdentityLo,
		identityHi:         DefaultIdentityHi,
		primaryTagMask:     0x100,
		secondaryTagMask:   0x200,
		log2PageSize:       12,
		log2BlockSize:      6,
		translationLatency: 10,
		csrLatency:         2,
		numReqPerCycle:     4,
		controlBlockSlots:  8,
		engineBlockSlots:   12,
		connBufCapacity:    4,
	}
}

// WithEngine sets the engine to be used by all harness components.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the harness works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithNumSecondaryPortGroups sets the number of secondary port groups.
func (b Builder) WithNumSecondaryPortGroups(n int) Builder {
	b.numSecondaryPortGroups = n
	return b
}

// WithPageTable sets the page table shared by the translation services. A
// fresh table is created when none is given.
func (b Builder) WithPageTable(pt vm.PageTable) Builder {
	b.pageTable = pt
	return b
}

// WithFabricPort sets the port of the memory fabric that serves translated
// bulk traffic.
func (b Builder) WithFabricPort(p sim.Port) Builder {
	b.fabricPort = p
	return b
}

// WithPID sets the process ID the register window is mapped under.
func (b Builder) WithPID(pid vm.PID) Builder {
	b.pid = pid
	return b
}

// WithCSRBase sets the base address of the register window.
func (b Builder) WithCSRBase(base uint64) Builder {
	b.csrBase = base
	return b
}

// WithIdentity sets the 128-bit identity value of the global block.
func (b Builder) WithIdentity(lo, hi uint64) Builder {
	b.identityLo = lo
	b.identityHi = hi
	return b
}

// WithPrimaryTagMask sets the reserved tag mask of the primary translation
// service.
func (b Builder) WithPrimaryTagMask(mask int) Builder {
	b.primaryTagMask = mask
	return b
}

// WithSecondaryTagMask sets the reserved tag mask of the secondary
// translation service.
func (b Builder) WithSecondaryTagMask(mask int) Builder {
	b.secondaryTagMask = mask
	return b
}

// WithLog2PageSize sets the page size the harness works with.
func (b Builder) WithLog2PageSize(n uint64) Builder {
	b.log2PageSize = n
	return b
}

// WithLog2BlockSize sets the granularity of the ordering stage.
func (b Builder) WithLog2BlockSize(n uint64) Builder {
	b.log2BlockSize = n
	return b
}

// WithTranslationLatency sets the page-walk latency in cycles.
func (b Builder) WithTranslationLatency(n int) Builder {
	b.translationLatency = n
	return b
}

// WithCSRLatency sets the register-file access latency in cycles.
func (b Builder) WithCSRLatency(n int) Builder {
	b.csrLatency = n
	return b
}

// Build creates a harness with 1+numSecondaryPortGroups engines.
func (b Builder) Build(name string) *Harness {
	b.name = name
	b.mustBeWellFormed()

	h := &Harness{
		engine:                 b.engine,
		numSecondaryPortGroups: b.numSecondaryPortGroups,
		pageTable:              b.pageTable,
	}

	if h.pageTable == nil {
		h.pageTable = vm.NewPageTable(b.log2PageSize)
	}

	h.conn = sim.NewDirectConnection(name+".Conn", b.engine, b.freq)

	topo := b.selectTopology()

	b.buildPrimaryTranslation(h)
	topo.buildSecondary(b, h)
	b.buildRegisterSpace(h, topo)
	b.buildPrimaryPath(h)
	b.bindDynamicSlots(h)
	b.mapRegisterWindow(h)
	b.connectPorts(h)

	return h
}

func (b Builder) mustBeWellFormed() {
	if b.engine == nil {
		panic("harness: an engine is required")
	}

	if b.fabricPort == nil {
		panic("harness: a fabric port is required")
	}

	if b.numSecondaryPortGroups < 0 {
		panic("harness: the number of secondary port groups cannot be negative")
	}

	if b.numSecondaryPortGroups > 0 &&
		b.primaryTagMask&b.secondaryTagMask != 0 {
		panic("harness: reserved tag masks of the two translation services overlap")
	}
}

func (b Builder) selectTopology() topology {
	if b.numSecondaryPortGroups == 0 {
		return passthroughOnly{}
	}

	return withSecondaryTranslation{numGroups: b.numSecondaryPortGroups}
}

func (b Builder) buildPrimaryTranslation(h *Harness) {
	h.primaryVTP = vtp.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithNumPorts(1).
		WithPageTable(h.pageTable).
		WithLog2PageSize(b.log2PageSize).
		WithLatency(b.translationLatency).
		WithReservedTagMask(b.primaryTagMask).
		Build(b.name + ".PrimaryVTP")
}

// buildRegisterSpace creates the block chain in discovery order and the
// register file serving it. The global block leads, the primary pipeline
// block terminates the chain.
func (b Builder) buildRegisterSpace(h *Harness, topo topology) {
	h.globalBlock = csr.NewBlock(b.identityLo, b.identityHi,
		b.controlBlockSlots)
	h.globalBlock.SetSlot(csr.SlotPayload, topo.summary())

	for i := 0; i < h.NumEngines(); i++ {
		block := csr.NewBlock(BlockKindEngine, uint64(i), b.engineBlockSlots)
		block.SetSlot(csr.SlotPayload, uint64(i))
		h.engineBlocks = append(h.engineBlocks, block)
	}

	h.pipelineBlock = csr.NewBlock(BlockKindPipeline, 0, b.controlBlockSlots)

	chain := []*csr.Block{h.globalBlock}
	chain = append(chain, topo.controlBlocks(h)...)
	chain = append(chain, h.engineBlocks...)
	chain = append(chain, h.pipelineBlock)

	csr.LayOut(b.csrBase, chain)

	h.csrBase = b.csrBase
	for _, block := range chain {
		h.csrSize += uint64(block.NumSlots()) * csr.SlotBytes
	}

	h.regFile = csr.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithLatency(b.csrLatency).
		WithBlocks(chain).
		Build(b.name + ".CSR")
}

func (b Builder) buildPrimaryPath(h *Harness) {
	h.split = splitter.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithCSRWindow(h.csrBase, h.csrSize).
		WithNumReqPerCycle(b.numReqPerCycle).
		WithMemLowModule(b.fabricPort).
		WithCSRLowModule(h.regFile.TopPort()).
		Build(b.name + ".Splitter")

	h.ordering = wro.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithLog2BlockSize(b.log2BlockSize).
		WithNumReqPerCycle(b.numReqPerCycle).
		WithLowModule(h.split.TopPort()).
		Build(b.name + ".WRO")

	h.primaryXlat = xlat.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithLog2PageSize(b.log2PageSize).
		WithNumReqPerCycle(b.numReqPerCycle).
		WithReservedTagMask(b.primaryTagMask).
		WithTranslationProvider(h.primaryVTP.TranslationPort(0)).
		WithLowModule(h.ordering.TopPort()).
		Build(b.name + ".PrimaryXlat")
}

func (b Builder) buildXlat(
	h *Harness,
	prefix string,
	i int,
	provider sim.Port,
	lowModule sim.Port,
) *xlat.Comp {
	return xlat.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithLog2PageSize(b.log2PageSize).
		WithNumReqPerCycle(b.numReqPerCycle).
		WithReservedTagMask(b.secondaryTagMask).
		WithTranslationProvider(provider).
		WithLowModule(lowModule).
		Build(fmt.Sprintf("%s.%s%d", b.name, prefix, i))
}

// bindDynamicSlots feeds the live pipeline counters into the register map.
// Each counter has exactly one writer; the blocks only read.
func (b Builder) bindDynamicSlots(h *Harness) {
	h.engineBlocks[0].SetDynamic(csr.SlotFirstFree, h.primaryXlat.FaultCount)

	for p := 0; p < h.numSecondaryPortGroups; p++ {
		readXlat := h.secondaryReadXlats[p]
		writeXlat := h.secondaryWriteXlats[p]
		h.engineBlocks[p+1].SetDynamic(csr.SlotFirstFree, func() uint64 {
			return readXlat.FaultCount() + writeXlat.FaultCount()
		})
	}

	h.pipelineBlock.SetDynamic(csr.SlotFirstFree, h.ordering.ReadsCompleted)
	h.pipelineBlock.SetDynamic(csr.SlotFirstFree+1,
		h.ordering.WritesCompleted)
}

// mapRegisterWindow identity-maps the register window so register traffic
// flows in-band through translation like any other access.
func (b Builder) mapRegisterWindow(h *Harness) {
	pageSize := uint64(1) << b.log2PageSize
	start := h.csrBase &^ (pageSize - 1)
	end := h.csrBase + h.csrSize

	for addr := start; addr < end; addr += pageSize {
		h.pageTable.Insert(vm.Page{
			PID:      b.pid,
			VAddr:    addr,
			PAddr:    addr,
			PageSize: pageSize,
			Valid:    true,
		})
	}
}

func (b Builder) connectPorts(h *Harness) {
	plug := func(p sim.Port) {
		h.conn.PlugIn(p, b.connBufCapacity)
	}

	plug(b.fabricPort)

	plug(h.primaryVTP.TranslationPort(0))
	plug(h.primaryVTP.GetPortByName("Control"))

	if h.secondaryVTP != nil {
		for i := 0; i < h.secondaryVTP.NumPorts(); i++ {
			plug(h.secondaryVTP.TranslationPort(i))
		}
		plug(h.secondaryVTP.GetPortByName("Control"))
	}

	xlats := []*xlat.Comp{h.primaryXlat}
	xlats = append(xlats, h.secondaryReadXlats...)
	xlats = append(xlats, h.secondaryWriteXlats...)
	for _, x := range xlats {
		plug(x.GetPortByName("Top"))
		plug(x.GetPortByName("Bottom"))
		plug(x.GetPortByName("Translation"))
		plug(x.GetPortByName("Control"))
	}

	plug(h.ordering.GetPortByName("Top"))
	plug(h.ordering.GetPortByName("Bottom"))
	plug(h.ordering.GetPortByName("Control"))

	plug(h.split.GetPortByName("Top"))
	plug(h.split.GetPortByName("Mem"))
	plug(h.split.GetPortByName("CSR"))
	plug(h.split.GetPortByName("Control"))

	plug(h.regFile.GetPortByName("Top"))
	plug(h.regFile.GetPortByName("Control"))
}
