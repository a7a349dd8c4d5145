// Package harness composes the verification pipeline. It allocates
// translation ports and register blocks across a variable number of engines,
// wires the primary ordered path and the optional secondary port groups, and
// lays out the self-describing register map.
package harness

import (
	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"

	"github.com/sarchlab/memharness/csr"
	"github.com/sarchlab/memharness/splitter"
	"github.com/sarchlab/memharness/vtp"
	"github.com/sarchlab/memharness/wro"
	"github.com/sarchlab/memharness/xlat"
)

// Default identity value reported through the global register block.
const (
	DefaultIdentityLo = 0x736e7261686d656d // "memharns"
	DefaultIdentityHi = 0x0000000000000100 // version 1.0
)

// Block-kind tags reported through the identity slots of non-global blocks.
const (
	BlockKindTranslation = 0x505456 // "VTP"
	BlockKindEngine      = 0x474e45 // "ENG"
	BlockKindPipeline    = 0x4f5257 // "WRO"
)

// A Harness is a composed pipeline. Engine 0 drives the primary
// translated-and-ordered path; engines 1..k drive secondary port-group pairs
// that reach the fabric without ordering guarantees.
type Harness struct {
	engine sim.Engine
	conn   *sim.DirectConnection

	numSecondaryPortGroups int
	pageTable              vm.PageTable

	primaryVTP   *vtp.Comp
	secondaryVTP *vtp.Comp

	primaryXlat *xlat.Comp
	ordering    *wro.Comp
	split       *splitter.Comp
	regFile     *csr.Comp

	secondaryReadXlats  []*xlat.Comp
	secondaryWriteXlats []*xlat.Comp

	globalBlock      *csr.Block
	translationBlock *csr.Block
	engineBlocks     []*csr.Block
	pipelineBlock    *csr.Block

	csrBase uint64
	csrSize uint64
}

// NumEngines returns the number of engines the harness serves.
func (h *Harness) NumEngines() int {
	return 1 + h.numSecondaryPortGroups
}

// NumSecondaryPortGroups returns the number of secondary port groups.
func (h *Harness) NumSecondaryPortGroups() int {
	return h.numSecondaryPortGroups
}

// PrimaryPort returns the port engine 0 sends virtual-address requests to.
func (h *Harness) PrimaryPort() sim.Port {
	return h.primaryXlat.TopPort()
}

// SecondaryReadPort returns the read-direction entry of secondary group p.
func (h *Harness) SecondaryReadPort(p int) sim.Port {
	return h.secondaryReadXlats[p].TopPort()
}

// SecondaryWritePort returns the write-direction entry of secondary group p.
func (h *Harness) SecondaryWritePort(p int) sim.Port {
	return h.secondaryWriteXlats[p].TopPort()
}

// SecondaryTranslation returns the secondary translation service, or nil when
// no secondary port groups exist.
func (h *Harness) SecondaryTranslation() *vtp.Comp {
	return h.secondaryVTP
}

// RegisterFile returns the register-space aggregator.
func (h *Harness) RegisterFile() *csr.Comp {
	return h.regFile
}

// GlobalBlock returns the global register block heading the discovery chain.
func (h *Harness) GlobalBlock() *csr.Block {
	return h.globalBlock
}

// EngineBlock returns the register block owned by engine i.
func (h *Harness) EngineBlock(i int) *csr.Block {
	return h.engineBlocks[i]
}

// PipelineBlock returns the primary pipeline's register block.
func (h *Harness) PipelineBlock() *csr.Block {
	return h.pipelineBlock
}

// CSRBase returns the base address of the register window.
func (h *Harness) CSRBase() uint64 {
	return h.csrBase
}

// CSRSize returns the size of the register window in bytes.
func (h *Harness) CSRSize() uint64 {
	return h.csrSize
}

// PageTable returns the page table shared by both translation services.
func (h *Harness) PageTable() vm.PageTable {
	return h.pageTable
}

// PrimaryFaultCount returns the translation faults seen on the primary path.
func (h *Harness) PrimaryFaultCount() uint64 {
	return h.primaryXlat.FaultCount()
}

// SecondaryFaultCount returns the translation faults seen by group p.
func (h *Harness) SecondaryFaultCount(p int) uint64 {
	return h.secondaryReadXlats[p].FaultCount() +
		h.secondaryWriteXlats[p].FaultCount()
}

// PlugIn attaches an external port, such as an engine's request port, to the
// harness interconnect.
func (h *Harness) PlugIn(port sim.Port, bufCapacity int) {
	h.conn.PlugIn(port, bufCapacity)
}

// A topology decides whether a secondary translation service exists and what
// it contributes to the register map. Exactly one variant is chosen at build
// time so no zero-sized port pool can ever be constructed.
type topology interface {
	buildSecondary(b Builder, h *Harness)
	controlBlocks(h *Harness) []*csr.Block
	summary() uint64
}

// passthroughOnly is the topology with no secondary port groups. No secondary
// translation service object exists at all.
type passthroughOnly struct{}

func (passthroughOnly) buildSecondary(b Builder, h *Harness) {}

func (passthroughOnly) controlBlocks(h *Harness) []*csr.Block {
	return nil
}

func (passthroughOnly) summary() uint64 {
	return 0
}

// withSecondaryTranslation adds one translation service with two ports per
// secondary group. Group p owns port 2p for reads and port 2p+1 for writes.
type withSecondaryTranslation struct {
	numGroups int
}

func (t withSecondaryTranslation) buildSecondary(b Builder, h *Harness) {
	h.secondaryVTP = vtp.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithNumPorts(2 * t.numGroups).
		WithPageTable(h.pageTable).
		WithLog2PageSize(b.log2PageSize).
		WithLatency(b.translationLatency).
		WithReservedTagMask(b.secondaryTagMask).
		Build(b.name + ".SecondaryVTP")

	for p := 0; p < t.numGroups; p++ {
		h.secondaryReadXlats = append(h.secondaryReadXlats,
			b.buildXlat(h, "SecondaryReadXlat", p,
				h.secondaryVTP.TranslationPort(2*p), b.fabricPort))
		h.secondaryWriteXlats = append(h.secondaryWriteXlats,
			b.buildXlat(h, "SecondaryWriteXlat", p,
				h.secondaryVTP.TranslationPort(2*p+1), b.fabricPort))
	}

	h.translationBlock = csr.NewBlock(
		BlockKindTranslation, 0, b.controlBlockSlots)
	h.translationBlock.SetSlot(csr.SlotPayload, uint64(2*t.numGroups))
}

func (t withSecondaryTranslation) controlBlocks(h *Harness) []*csr.Block {
	return []*csr.Block{h.translationBlock}
}

func (t withSecondaryTranslation) summary() uint64 {
	return uint64(t.numGroups) | 1<<8
}
