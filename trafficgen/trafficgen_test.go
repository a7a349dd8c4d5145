package trafficgen

import (
	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v3/mem/mem"
	"github.com/sarchlab/akita/v3/sim"

	"github.com/sarchlab/memharness/csr"
	"github.com/sarchlab/memharness/xlat"
)

var _ = Describe("Traffic Generator", func() {
	var (
		mockCtrl *gomock.Controller
		engine   sim.Engine
		memPort  *MockPort
		dst      *MockPort

		c *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		memPort = NewMockPort(mockCtrl)
		dst = NewMockPort(mockCtrl)

		c = MakeBuilder().
			WithEngine(engine).
			WithCombinedPort(dst).
			WithNumAccesses(4).
			WithWriteFraction(0).
			WithAddressRange(0, 0x1000).
			Build("Engine")
		c.readPort = memPort
		c.writePort = memPort
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start issuing without an external kick", func() {
		eng := sim.NewSerialEngine()
		gen := MakeBuilder().
			WithEngine(eng).
			WithCombinedPort(dst).
			WithNumAccesses(1).
			WithWriteFraction(0).
			WithAddressRange(0, 0x1000).
			Build("SelfStarting")
		gen.readPort = memPort
		gen.writePort = memPort

		memPort.EXPECT().Peek().Return(nil).AnyTimes()
		memPort.EXPECT().Send(gomock.Any()).Return(nil)

		Expect(eng.Run()).To(Succeed())
		Expect(gen.issued).To(Equal(1))
	})

	It("should issue accesses until the budget is spent", func() {
		memPort.EXPECT().Send(gomock.Any()).Return(nil).Times(4)

		for i := 0; i < 4; i++ {
			Expect(c.issue(10)).To(BeTrue())
		}
		Expect(c.issue(10)).To(BeFalse())
		Expect(c.inflight).To(HaveLen(4))
		Expect(c.Done()).To(BeFalse())
	})

	It("should stop issuing at the in-flight limit", func() {
		c.maxInflight = 1
		memPort.EXPECT().Send(gomock.Any()).Return(nil)

		Expect(c.issue(10)).To(BeTrue())
		Expect(c.issue(10)).To(BeFalse())
	})

	It("should record written data once the write completes", func() {
		c.writeFraction = 1

		var req *mem.WriteReq
		memPort.EXPECT().
			Send(gomock.Any()).
			Do(func(msg sim.Msg) { req = msg.(*mem.WriteReq) }).
			Return(nil)
		Expect(c.issue(10)).To(BeTrue())
		Expect(c.pendingWrites[req.Address]).To(Equal(1))

		done := mem.WriteDoneRspBuilder{}.
			WithSendTime(20).
			WithSrc(dst).
			WithDst(memPort).
			WithRspTo(req.ID).
			Build()
		memPort.EXPECT().Peek().Return(done)
		memPort.EXPECT().Retrieve(gomock.Any()).Return(done)

		Expect(c.collect(20, memPort)).To(BeTrue())
		Expect(c.WritesDone()).To(Equal(uint64(1)))
		Expect(c.pendingWrites[req.Address]).To(Equal(0))
		Expect(c.memory[req.Address]).To(Equal(req.Data))
		Expect(c.Done()).To(BeFalse())
	})

	It("should flag a read that returns unexpected data", func() {
		c.memory[0x100] = []byte{1, 1, 1, 1, 1, 1, 1, 1}

		req := mem.ReadReqBuilder{}.
			WithSendTime(10).
			WithSrc(memPort).
			WithDst(dst).
			WithAddress(0x100).
			WithByteSize(8).
			Build()
		c.inflight[req.ID] = &access{isRead: true, addr: 0x100, sentAt: 10}
		c.issued = c.numAccesses

		rsp := mem.DataReadyRspBuilder{}.
			WithSendTime(20).
			WithSrc(dst).
			WithDst(memPort).
			WithRspTo(req.ID).
			WithData([]byte{2, 2, 2, 2, 2, 2, 2, 2}).
			Build()
		memPort.EXPECT().Peek().Return(rsp)
		memPort.EXPECT().Retrieve(gomock.Any()).Return(rsp)

		Expect(c.collect(20, memPort)).To(BeTrue())
		Expect(c.MismatchCount()).To(Equal(uint64(1)))
		Expect(c.ReadsDone()).To(Equal(uint64(1)))
		Expect(c.Done()).To(BeTrue())
	})

	It("should count a fault and keep going", func() {
		req := mem.ReadReqBuilder{}.
			WithSendTime(10).
			WithSrc(memPort).
			WithDst(dst).
			WithAddress(0x100).
			WithByteSize(8).
			Build()
		c.inflight[req.ID] = &access{isRead: true, addr: 0x100, sentAt: 10}

		fault := xlat.FaultRspBuilder{}.
			WithSendTime(20).
			WithSrc(dst).
			WithDst(memPort).
			WithRspTo(req.ID).
			WithVAddr(0x100).
			Build()
		memPort.EXPECT().Peek().Return(fault)
		memPort.EXPECT().Retrieve(gomock.Any()).Return(fault)

		Expect(c.collect(20, memPort)).To(BeTrue())
		Expect(c.FaultCount()).To(Equal(uint64(1)))
		Expect(c.inflight).To(BeEmpty())
	})

	It("should summarize completed accesses", func() {
		c.readsDone = 2
		c.writesDone = 1
		c.latencies = []float64{1e-9, 3e-9, 2e-9}

		s := c.Stats()

		Expect(s.ReadsDone).To(Equal(uint64(2)))
		Expect(s.WritesDone).To(Equal(uint64(1)))
		Expect(s.AvgLatency).To(BeNumerically("~", 2e-9, 1e-12))
		Expect(s.P50Latency).To(Equal(2e-9))
	})

	It("should publish its counters through its register block", func() {
		block := csr.NewBlock(0, 0, 12)
		c.BindBlock(block)
		c.readsDone = 3
		c.writesDone = 5

		Expect(block.ReadSlot(csr.SlotFirstFree + 1)).To(Equal(uint64(3)))
		Expect(block.ReadSlot(csr.SlotFirstFree + 2)).To(Equal(uint64(5)))
		Expect(block.ReadSlot(csr.SlotFirstFree + 3)).To(Equal(uint64(0)))
	})
})
