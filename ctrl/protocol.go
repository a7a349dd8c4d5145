// Package ctrl defines the control messages that pause, reset, and restart
// the pipeline components of the harness.
package ctrl

import (
	"github.com/sarchlab/akita/v3/sim"
)

// A ResetReq asks a component to drop all internal state and stop accepting
// traffic until a RestartReq arrives.
type ResetReq struct {
	sim.MsgMeta
}

// Meta returns the meta data associated with the message.
func (r *ResetReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// ResetReqBuilder can build reset requests.
type ResetReqBuilder struct {
	sendTime sim.VTimeInSec
	src, dst sim.Port
}

// WithSendTime sets the send time of the request to build.
func (b ResetReqBuilder) WithSendTime(t sim.VTimeInSec) ResetReqBuilder {
	b.sendTime = t
	return b
}

// WithSrc sets the source of the request to build.
func (b ResetReqBuilder) WithSrc(src sim.Port) ResetReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b ResetReqBuilder) WithDst(dst sim.Port) ResetReqBuilder {
	b.dst = dst
	return b
}

// Build creates a new ResetReq.
func (b ResetReqBuilder) Build() *ResetReq {
	r := &ResetReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.SendTime = b.sendTime
	return r
}

// A ResetRsp marks the completion of a reset.
type ResetRsp struct {
	sim.MsgMeta

	RespondTo string
}

// Meta returns the meta data associated with the message.
func (r *ResetRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRspTo returns the ID of the request that the respond is responding to.
func (r *ResetRsp) GetRspTo() string {
	return r.RespondTo
}

// ResetRspBuilder can build reset responds.
type ResetRspBuilder struct {
	sendTime sim.VTimeInSec
	src, dst sim.Port
	rspTo    string
}

// WithSendTime sets the send time of the respond to build.
func (b ResetRspBuilder) WithSendTime(t sim.VTimeInSec) ResetRspBuilder {
	b.sendTime = t
	return b
}

// WithSrc sets the source of the respond to build.
func (b ResetRspBuilder) WithSrc(src sim.Port) ResetRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the respond to build.
func (b ResetRspBuilder) WithDst(dst sim.Port) ResetRspBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the request that the respond to build replies to.
func (b ResetRspBuilder) WithRspTo(id string) ResetRspBuilder {
	b.rspTo = id
	return b
}

// Build creates a new ResetRsp.
func (b ResetRspBuilder) Build() *ResetRsp {
	r := &ResetRsp{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.SendTime = b.sendTime
	r.RespondTo = b.rspTo
	return r
}

// A RestartReq asks a previously reset component to accept traffic again.
type RestartReq struct {
	sim.MsgMeta
}

// Meta returns the meta data associated with the message.
func (r *RestartReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// RestartReqBuilder can build restart requests.
type RestartReqBuilder struct {
	sendTime sim.VTimeInSec
	src, dst sim.Port
}

// WithSendTime sets the send time of the request to build.
func (b RestartReqBuilder) WithSendTime(t sim.VTimeInSec) RestartReqBuilder {
	b.sendTime = t
	return b
}

// WithSrc sets the source of the request to build.
func (b RestartReqBuilder) WithSrc(src sim.Port) RestartReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b RestartReqBuilder) WithDst(dst sim.Port) RestartReqBuilder {
	b.dst = dst
	return b
}

// Build creates a new RestartReq.
func (b RestartReqBuilder) Build() *RestartReq {
	r := &RestartReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.SendTime = b.sendTime
	return r
}

// A RestartRsp marks the completion of a restart.
type RestartRsp struct {
	sim.MsgMeta

	RespondTo string
}

// Meta returns the meta data associated with the message.
func (r *RestartRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRspTo returns the ID of the request that the respond is responding to.
func (r *RestartRsp) GetRspTo() string {
	return r.RespondTo
}

// RestartRspBuilder can build restart responds.
type RestartRspBuilder struct {
	sendTime sim.VTimeInSec
	src, dst sim.Port
	rspTo    string
}

// WithSendTime sets the send time of the respond to build.
func (b RestartRspBuilder) WithSendTime(t sim.VTimeInSec) RestartRspBuilder {
	b.sendTime = t
	return b
}

// WithSrc sets the source of the respond to build.
func (b RestartRspBuilder) WithSrc(src sim.Port) RestartRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the respond to build.
func (b RestartRspBuilder) WithDst(dst sim.Port) RestartRspBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the request that the respond to build replies to.
func (b RestartRspBuilder) WithRspTo(id string) RestartRspBuilder {
	b.rspTo = id
	return b
}

// Build creates a new RestartRsp.
func (b RestartRspBuilder) Build() *RestartRsp {
	r := &RestartRsp{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.SendTime = b.sendTime
	r.RespondTo = b.rspTo
	return r
}
