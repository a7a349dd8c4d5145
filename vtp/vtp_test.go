package vtp

import (
	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v3/mem/vm"
	"github.com/sarchlab/akita/v3/sim"

	"github.com/sarchlab/memharness/ctrl"
)

var _ = Describe("Translation Service", func() {
	var (
		mockCtrl   *gomock.Controller
		engine     sim.Engine
		port0      *MockPort
		port1      *MockPort
		ctrlPort   *MockPort
		remotePort *MockPort
		pageTable  vm.PageTable

		c *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		port0 = NewMockPort(mockCtrl)
		port1 = NewMockPort(mockCtrl)
		ctrlPort = NewMockPort(mockCtrl)
		remotePort = NewMockPort(mockCtrl)
		pageTable = vm.NewPageTable(12)

		c = MakeBuilder().
			WithEngine(engine).
			WithNumPorts(2).
			WithPageTable(pageTable).
			WithLatency(10).
			WithReservedTagMask(0x100).
			Build("VTP")
		c.translationPorts = []sim.Port{port0, port1}
		c.ctrlPort = ctrlPort
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newReq := func(vAddr uint64) *vm.TranslationReq {
		return vm.TranslationReqBuilder{}.
			WithSendTime(10).
			WithSrc(remotePort).
			WithDst(port0).
			WithPID(1).
			WithVAddr(vAddr).
			WithDeviceID(0).
			Build()
	}

	It("should refuse to build without ports", func() {
		Expect(func() {
			MakeBuilder().WithEngine(engine).WithNumPorts(0).Build("VTP")
		}).To(Panic())
	})

	It("should do nothing when no request arrives", func() {
		ctrlPort.EXPECT().Peek().Return(nil)
		port0.EXPECT().Peek().Return(nil)
		port1.EXPECT().Peek().Return(nil)

		madeProgress := c.Tick(10)

		Expect(madeProgress).To(BeFalse())
	})

	It("should start a walk when a request arrives", func() {
		req := newReq(0x1040)

		ctrlPort.EXPECT().Peek().Return(nil)
		port0.EXPECT().Peek().Return(req)
		port0.EXPECT().Retrieve(gomock.Any()).Return(req)
		port1.EXPECT().Peek().Return(nil)

		madeProgress := c.Tick(10)

		Expect(madeProgress).To(BeTrue())
		Expect(c.walking).To(HaveLen(1))
		Expect(c.walking[0].portID).To(Equal(0))
		Expect(c.walking[0].cycleLeft).To(Equal(10))
	})

	It("should answer a finished walk with the mapped page", func() {
		page := vm.Page{
			PID:      1,
			VAddr:    0x1000,
			PAddr:    0x2000,
			PageSize: 4096,
			Valid:    true,
		}
		pageTable.Insert(page)

		req := newReq(0x1040)
		c.walking = append(c.walking,
			walkingTranslation{req: req, portID: 0, cycleLeft: 0})

		var rsp *vm.TranslationRsp
		port0.EXPECT().
			Send(gomock.Any()).
			Do(func(msg sim.Msg) { rsp = msg.(*vm.TranslationRsp) }).
			Return(nil)

		madeProgress := c.walk(10)

		Expect(madeProgress).To(BeTrue())
		Expect(c.walking).To(BeEmpty())
		Expect(rsp.RespondTo).To(Equal(req.ID))
		Expect(rsp.Page).To(Equal(page))
		Expect(rsp.TrafficClass).To(Equal(0x100))
	})

	It("should answer an unmapped address with an invalid page", func() {
		req := newReq(0x8000_0000)
		c.walking = append(c.walking,
			walkingTranslation{req: req, portID: 0, cycleLeft: 0})

		var rsp *vm.TranslationRsp
		port0.EXPECT().
			Send(gomock.Any()).
			Do(func(msg sim.Msg) { rsp = msg.(*vm.TranslationRsp) }).
			Return(nil)

		madeProgress := c.walk(10)

		Expect(madeProgress).To(BeTrue())
		Expect(rsp.Page.Valid).To(BeFalse())
		Expect(rsp.Page.VAddr).To(Equal(uint64(0x8000_0000)))
	})

	It("should keep the walk when the port cannot accept the respond", func() {
		pageTable.Insert(vm.Page{
			PID: 1, VAddr: 0x1000, PAddr: 0x2000, PageSize: 4096, Valid: true,
		})

		req := newReq(0x1000)
		c.walking = append(c.walking,
			walkingTranslation{req: req, portID: 0, cycleLeft: 0})

		port0.EXPECT().
			Send(gomock.Any()).
			Return(sim.NewSendError())

		madeProgress := c.walk(10)

		Expect(madeProgress).To(BeFalse())
		Expect(c.walking).To(HaveLen(1))
	})

	It("should shorten walks for recently seen pages", func() {
		page := vm.Page{
			PID: 1, VAddr: 0x1000, PAddr: 0x2000, PageSize: 4096, Valid: true,
		}
		c.recordPresence(page)

		req := newReq(0x1040)

		Expect(c.walkCycles(req)).To(Equal(1))
		Expect(c.walkCycles(newReq(0x9000))).To(Equal(10))
	})

	It("should not accept requests beyond the in-flight limit", func() {
		c.maxRequestsInFlight = 1
		c.walking = append(c.walking,
			walkingTranslation{req: newReq(0x1000), portID: 0, cycleLeft: 3})

		madeProgress := c.parsePort(10, 0)

		Expect(madeProgress).To(BeFalse())
	})

	It("should pause and clear state on reset", func() {
		c.walking = append(c.walking,
			walkingTranslation{req: newReq(0x1000), portID: 0, cycleLeft: 3})

		resetReq := ctrl.ResetReqBuilder{}.
			WithSendTime(10).
			WithSrc(remotePort).
			WithDst(ctrlPort).
			Build()
		ctrlPort.EXPECT().Peek().Return(resetReq)
		ctrlPort.EXPECT().Send(gomock.Any()).Return(nil)
		ctrlPort.EXPECT().Retrieve(gomock.Any()).Return(resetReq)

		madeProgress := c.Tick(10)

		Expect(madeProgress).To(BeTrue())
		Expect(c.walking).To(BeEmpty())
		Expect(c.isPaused).To(BeTrue())
	})

	It("should drain ports and resume on restart", func() {
		c.isPaused = true

		restartReq := ctrl.RestartReqBuilder{}.
			WithSendTime(10).
			WithSrc(remotePort).
			WithDst(ctrlPort).
			Build()
		ctrlPort.EXPECT().Peek().Return(restartReq)
		ctrlPort.EXPECT().Send(gomock.Any()).Return(nil)
		ctrlPort.EXPECT().Retrieve(gomock.Any()).Return(restartReq)
		port0.EXPECT().Retrieve(gomock.Any()).Return(nil)
		port1.EXPECT().Retrieve(gomock.Any()).Return(nil)
		port0.EXPECT().Peek().Return(nil)
		port1.EXPECT().Peek().Return(nil)

		madeProgress := c.Tick(10)

		Expect(madeProgress).To(BeTrue())
		Expect(c.isPaused).To(BeFalse())
	})
})
