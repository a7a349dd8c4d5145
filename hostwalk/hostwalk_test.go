package hostwalk

import (
	"encoding/binary"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v3/mem/mem"
	"github.com/sarchlab/akita/v3/sim"
)

var _ = Describe("Register Map Walker", func() {
	var (
		mockCtrl     *gomock.Controller
		engine       sim.Engine
		memPort      *MockPort
		pipelinePort *MockPort

		c *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		memPort = NewMockPort(mockCtrl)
		pipelinePort = NewMockPort(mockCtrl)

		c = MakeBuilder().
			WithEngine(engine).
			WithEntryPoint(0x1000).
			WithPipelinePort(pipelinePort).
			Build("Walker")
		c.memPort = memPort
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	answer := func(value uint64) {
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, value)

		rsp := mem.DataReadyRspBuilder{}.
			WithSendTime(20).
			WithSrc(pipelinePort).
			WithDst(memPort).
			WithRspTo(c.pendingReqID).
			WithData(data).
			Build()
		memPort.EXPECT().Peek().Return(rsp)
		memPort.EXPECT().Retrieve(gomock.Any()).Return(rsp)

		Expect(c.collect(20)).To(BeTrue())
	}

	It("should start the walk without an external kick", func() {
		memPort.EXPECT().Peek().Return(nil).AnyTimes()
		memPort.EXPECT().Send(gomock.Any()).Return(nil)

		Expect(engine.Run()).To(Succeed())
		Expect(c.pendingReqID).NotTo(BeEmpty())
	})

	It("should read the header slots of the entry block", func() {
		var req *mem.ReadReq
		memPort.EXPECT().
			Send(gomock.Any()).
			Do(func(msg sim.Msg) { req = msg.(*mem.ReadReq) }).
			Return(nil)

		Expect(c.issue(10)).To(BeTrue())
		Expect(req.Address).To(Equal(uint64(0x1000)))
		Expect(req.AccessByteSize).To(Equal(uint64(8)))
		Expect(req.Dst).To(BeIdenticalTo(pipelinePort))
	})

	It("should hold further reads while one is outstanding", func() {
		memPort.EXPECT().Send(gomock.Any()).Return(nil)
		Expect(c.issue(10)).To(BeTrue())

		Expect(c.issue(11)).To(BeFalse())
	})

	It("should follow the chain and stop at zero", func() {
		memPort.EXPECT().Send(gomock.Any()).Return(nil).AnyTimes()

		// First block at 0x1000 linking to 0x2000.
		for _, v := range []uint64{0xaaaa, 0xbbbb, 0x0103, 8, 0x2000} {
			Expect(c.issue(10)).To(BeTrue())
			answer(v)
		}

		// Second block at 0x2000 terminating the chain.
		for _, v := range []uint64{0xcccc, 0, 0, 8, 0} {
			Expect(c.issue(10)).To(BeTrue())
			answer(v)
		}

		Expect(c.Done()).To(BeTrue())
		Expect(c.issue(10)).To(BeFalse())

		visited := c.Visited()
		Expect(visited).To(HaveLen(2))
		Expect(visited[0].Base).To(Equal(uint64(0x1000)))
		Expect(visited[0].Next).To(Equal(uint64(0x2000)))
		Expect(visited[1].Base).To(Equal(uint64(0x2000)))
		Expect(visited[1].Next).To(Equal(uint64(0)))

		Expect(c.IdentityLo()).To(Equal(uint64(0xaaaa)))
		Expect(c.IdentityHi()).To(Equal(uint64(0xbbbb)))
		Expect(c.Topology()).To(Equal(uint64(0x0103)))
	})
})
