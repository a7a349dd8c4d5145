package xlat

import (
	"github.com/sarchlab/akita/v3/sim"
)

// A FaultRsp tells the requester that the virtual address of one of its
// requests has no valid mapping. The request it answers is completed by this
// message; the channel keeps flowing.
type FaultRsp struct {
	sim.MsgMeta

	RespondTo string
	VAddr     uint64
}

// Meta returns the meta data associated with the message.
func (r *FaultRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRspTo returns the ID of the request that faulted.
func (r *FaultRsp) GetRspTo() string {
	return r.RespondTo
}

// FaultRspBuilder can build fault responds.
type FaultRspBuilder struct {
	sendTime sim.VTimeInSec
	src, dst sim.Port
	rspTo    string
	vAddr    uint64
}

// WithSendTime sets the send time of the respond to build.
func (b FaultRspBuilder) WithSendTime(t sim.VTimeInSec) FaultRspBuilder {
	b.sendTime = t
	return b
}

// WithSrc sets the source of the respond to build.
func (b FaultRspBuilder) WithSrc(src sim.Port) FaultRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the respond to build.
func (b FaultRspBuilder) WithDst(dst sim.Port) FaultRspBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the request that the respond to build replies to.
func (b FaultRspBuilder) WithRspTo(id string) FaultRspBuilder {
	b.rspTo = id
	return b
}

// WithVAddr sets the faulting virtual address.
func (b FaultRspBuilder) WithVAddr(vAddr uint64) FaultRspBuilder {
	b.vAddr = vAddr
	return b
}

// Build creates a new FaultRsp.
func (b FaultRspBuilder) Build() *FaultRsp {
	r := &FaultRsp{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.SendTime = b.sendTime
	r.RespondTo = b.rspTo
	r.VAddr = b.vAddr
	return r
}
