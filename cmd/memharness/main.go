// Command memharness runs the verification pipeline against an ideal memory
// controller, drives every engine to completion, walks the self-describing
// register map, and reports a PASS/FAIL verdict.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/fatih/color"
	"github.com/rs/xid"
	"github.com/sarchlab/akita/v3/mem/idealmemcontroller"
	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/memharness/harness"
	"github.com/sarchlab/memharness/hostwalk"
	"github.com/sarchlab/memharness/trafficgen"
)

var (
	parallelFlag = flag.Bool("parallel", false,
		"Run the simulation on a parallel engine.")
	numGroupsFlag = flag.Int("num-groups", 0,
		"Number of secondary port groups.")
	numAccessesFlag = flag.Int("num-accesses", 1024,
		"Number of accesses each engine issues.")
	writeFractionFlag = flag.Float64("write-fraction", 0.3,
		"Fraction of accesses that are writes.")
	seedFlag = flag.Int64("seed", 1,
		"Random seed of the access patterns.")
	memLatencyFlag = flag.Int("mem-latency", 100,
		"Fabric access latency in cycles.")
)

const (
	pid        = vm.PID(1)
	dataLoAddr = 0
	dataHiAddr = 1 << 20
	pageSize   = 1 << 12
)

func main() {
	flag.Parse()

	runID := xid.New().String()
	fmt.Printf("memharness run %s, %d secondary port groups\n",
		runID, *numGroupsFlag)

	engine := buildEngine()
	pageTable := buildPageTable()
	memCtrl := buildMemController(engine)

	h := harness.MakeBuilder().
		WithEngine(engine).
		WithNumSecondaryPortGroups(*numGroupsFlag).
		WithPageTable(pageTable).
		WithFabricPort(memCtrl.GetPortByName("Top")).
		WithPID(pid).
		Build("Harness")

	gens := buildEngines(engine, h)
	walker := buildWalker(engine, h)

	err := engine.Run()
	if err != nil {
		log.Panic(err)
	}

	reportEngines(gens)
	reportWalk(walker)

	if verdict(h, gens, walker) {
		color.New(color.FgGreen, color.Bold).Println("PASS")
		atexit.Exit(0)
	}

	color.New(color.FgRed, color.Bold).Println("FAIL")
	atexit.Exit(1)
}

func buildEngine() sim.Engine {
	if *parallelFlag {
		return sim.NewParallelEngine()
	}

	return sim.NewSerialEngine()
}

func buildPageTable() vm.PageTable {
	pageTable := vm.NewPageTable(12)

	for addr := uint64(dataLoAddr); addr < dataHiAddr; addr += pageSize {
		pageTable.Insert(vm.Page{
			PID:      pid,
			VAddr:    addr,
			PAddr:    addr,
			PageSize: pageSize,
			Valid:    true,
		})
	}

	return pageTable
}

func buildMemController(engine sim.Engine) *idealmemcontroller.Comp {
	return idealmemcontroller.MakeBuilder().
		WithEngine(engine).
		WithNewStorage(1 << 30).
		WithLatency(*memLatencyFlag).
		Build("MemCtrl")
}

func buildEngines(engine sim.Engine, h *harness.Harness) []*trafficgen.Comp {
	var gens []*trafficgen.Comp

	primary := trafficgen.MakeBuilder().
		WithEngine(engine).
		WithCombinedPort(h.PrimaryPort()).
		WithPID(pid).
		WithSeed(*seedFlag).
		WithNumAccesses(*numAccessesFlag).
		WithWriteFraction(*writeFractionFlag).
		WithAddressRange(dataLoAddr, dataHiAddr).
		Build("Engine0")
	primary.BindBlock(h.EngineBlock(0))
	h.PlugIn(primary.GetPortByName("Mem"), 4)
	gens = append(gens, primary)

	for p := 0; p < h.NumSecondaryPortGroups(); p++ {
		gen := trafficgen.MakeBuilder().
			WithEngine(engine).
			WithSplitPorts(h.SecondaryReadPort(p), h.SecondaryWritePort(p)).
			WithPID(pid).
			WithSeed(*seedFlag + int64(p) + 1).
			WithNumAccesses(*numAccessesFlag).
			WithWriteFraction(*writeFractionFlag).
			WithAddressRange(dataLoAddr, dataHiAddr).
			Build(fmt.Sprintf("Engine%d", p+1))
		gen.BindBlock(h.EngineBlock(p + 1))
		h.PlugIn(gen.GetPortByName("Read"), 4)
		h.PlugIn(gen.GetPortByName("Write"), 4)
		gens = append(gens, gen)
	}

	return gens
}

func buildWalker(engine sim.Engine, h *harness.Harness) *hostwalk.Comp {
	walker := hostwalk.MakeBuilder().
		WithEngine(engine).
		WithEntryPoint(h.CSRBase()).
		WithPipelinePort(h.PrimaryPort()).
		WithPID(pid).
		Build("Walker")
	h.PlugIn(walker.MemPort(), 1)

	return walker
}

func reportEngines(gens []*trafficgen.Comp) {
	for i, gen := range gens {
		s := gen.Stats()
		fmt.Printf(
			"engine %d: %d reads, %d writes, %d faults, %d mismatches, "+
				"latency avg %.0fns p50 %.0fns p95 %.0fns\n",
			i, s.ReadsDone, s.WritesDone, s.FaultCount, s.MismatchCount,
			s.AvgLatency*1e9, s.P50Latency*1e9, s.P95Latency*1e9)
	}
}

func reportWalk(walker *hostwalk.Comp) {
	if !walker.Done() {
		fmt.Println("register map walk did not terminate")
		return
	}

	fmt.Printf("register map: %d blocks, identity %016x%016x, topology %#x\n",
		len(walker.Visited()), walker.IdentityHi(), walker.IdentityLo(),
		walker.Topology())

	for _, b := range walker.Visited() {
		fmt.Printf("  block at %#x, %d slots, next %#x\n",
			b.Base, b.NumSlots, b.Next)
	}
}

func verdict(
	h *harness.Harness,
	gens []*trafficgen.Comp,
	walker *hostwalk.Comp,
) bool {
	ok := true

	for i, gen := range gens {
		if !gen.Done() {
			fmt.Printf("engine %d did not complete\n", i)
			ok = false
		}

		if gen.MismatchCount() > 0 {
			fmt.Printf("engine %d saw data mismatches\n", i)
			ok = false
		}

		if gen.FaultCount() > 0 {
			fmt.Printf("engine %d saw unexpected translation faults\n", i)
			ok = false
		}
	}

	numBlocks := 2 + h.NumEngines()
	if h.NumSecondaryPortGroups() > 0 {
		numBlocks++
	}

	if !walker.Done() || len(walker.Visited()) != numBlocks {
		fmt.Println("register map discovery is incomplete")
		ok = false
	}

	if walker.Done() &&
		(walker.IdentityLo() != harness.DefaultIdentityLo ||
			walker.IdentityHi() != harness.DefaultIdentityHi) {
		fmt.Println("register map reports a wrong identity")
		ok = false
	}

	return ok
}
