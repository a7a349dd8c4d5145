package trafficgen

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes one engine's run.
type Stats struct {
	ReadsDone     uint64
	WritesDone    uint64
	FaultCount    uint64
	MismatchCount uint64

	AvgLatency float64
	P50Latency float64
	P95Latency float64
}

// Stats returns the statistics of the accesses completed so far. Latencies
// are in simulated seconds.
func (c *Comp) Stats() Stats {
	s := Stats{
		ReadsDone:     c.readsDone,
		WritesDone:    c.writesDone,
		FaultCount:    c.faultCount,
		MismatchCount: c.mismatchCount,
	}

	if len(c.latencies) == 0 {
		return s
	}

	sorted := make([]float64, len(c.latencies))
	copy(sorted, c.latencies)
	sort.Float64s(sorted)

	s.AvgLatency = stat.Mean(sorted, nil)
	s.P50Latency = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	s.P95Latency = stat.Quantile(0.95, stat.Empirical, sorted, nil)

	return s
}
