package sim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

func expectEvent(
	evt *MockEvent,
	t VTimeInSec,
	handler Handler,
	priority int,
) {
	evt.EXPECT().Time().Return(t).AnyTimes()
	evt.EXPECT().Handler().Return(handler).AnyTimes()
	evt.EXPECT().Priority().Return(priority).AnyTimes()
}

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngine()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should schedule events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		evt1 := NewMockEvent(mockCtrl)
		evt2 := NewMockEvent(mockCtrl)
		evt3 := NewMockEvent(mockCtrl)
		evt4 := NewMockEvent(mockCtrl)

		expectEvent(evt1, 4.0, handler1, 0)
		expectEvent(evt2, 2.0, handler2, 0)
		expectEvent(evt3, 3.0, handler1, 0)
		expectEvent(evt4, 5.0, handler1, 0)

		handleEvt2 := handler2.EXPECT().Handle(evt2).Do(func(e Event) {
			engine.Schedule(evt3)
			engine.Schedule(evt4)
		})
		handleEvt3 := handler1.EXPECT().
			Handle(evt3).After(handleEvt2)
		handleEvt1 := handler1.EXPECT().
			Handle(evt1).After(handleEvt3)
		handler1.EXPECT().
			Handle(evt4).After(handleEvt1)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run()).To(Succeed())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(5.0)))
	})

	It("should run same-time events by priority, then by schedule order", func() {
		order := []string{}
		record := func(name string) func() {
			return func() { order = append(order, name) }
		}

		engine.Schedule(NewCallbackEvent(1, "c", record("c")).WithPriority(1))
		engine.Schedule(NewCallbackEvent(1, "a", record("a")))
		engine.Schedule(NewCallbackEvent(1, "b", record("b")))
		engine.Schedule(NewCallbackEvent(0.5, "first", record("first")).
			WithPriority(9))

		Expect(engine.Run()).To(Succeed())
		Expect(order).To(Equal([]string{"first", "a", "b", "c"}))
	})

	It("should stop at the stop time and resume from there", func() {
		fired := []string{}
		record := func(name string) func() {
			return func() { fired = append(fired, name) }
		}

		engine.Schedule(NewCallbackEvent(1, "one", record("one")))
		engine.Schedule(NewCallbackEvent(2, "two", record("two")))
		engine.Schedule(NewCallbackEvent(3, "three", record("three")))

		Expect(engine.RunUntil(2)).To(Succeed())
		Expect(fired).To(Equal([]string{"one", "two"}))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(2)))
		Expect(engine.Pending()).To(Equal(1))

		Expect(engine.RunUntil(2.5)).To(Succeed())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(2.5)))

		Expect(engine.Run()).To(Succeed())
		Expect(fired).To(Equal([]string{"one", "two", "three"}))
		Expect(engine.Pending()).To(BeZero())
	})

	It("should keep the last event time when the queue drains early", func() {
		engine.Schedule(NewCallbackEvent(1, "one", func() {}))

		Expect(engine.RunUntil(5)).To(Succeed())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(1)))
	})

	It("should refuse to run until a past time", func() {
		engine.Schedule(NewCallbackEvent(3, "x", func() {}))
		Expect(engine.Run()).To(Succeed())

		Expect(engine.RunUntil(1)).To(MatchError(ContainSubstring("cannot run until")))
	})

	It("should panic when scheduling in the past", func() {
		engine.Schedule(NewCallbackEvent(2, "now", func() {
			engine.Schedule(NewCallbackEvent(1, "past", func() {}))
		}))

		Expect(func() { _ = engine.Run() }).To(Panic())
	})

	It("should stop on handler error", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := NewMockEvent(mockCtrl)
		evt2 := NewMockEvent(mockCtrl)
		expectEvent(evt1, 1, handler, 0)
		expectEvent(evt2, 2, handler, 0)

		handler.EXPECT().Handle(evt1).Return(errors.New("boom"))

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run()).To(MatchError("boom"))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(1)))
	})

	It("should invoke hooks around every event", func() {
		positions := []*HookPos{}
		engine.AcceptHook(HookFunc(func(ctx HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		engine.Schedule(NewCallbackEvent(1, "x", func() {}))
		Expect(engine.Run()).To(Succeed())

		Expect(positions).To(Equal(
			[]*HookPos{HookPosBeforeEvent, HookPosAfterEvent}))
	})

	It("should call simulation end handlers", func() {
		var endTime VTimeInSec = -1
		engine.RegisterSimulationEndHandler(endHandlerFunc(func(now VTimeInSec) {
			endTime = now
		}))

		engine.Schedule(NewCallbackEvent(3, "x", func() {}))
		Expect(engine.Run()).To(Succeed())
		engine.Finished()

		Expect(endTime).To(Equal(VTimeInSec(3)))
	})
})

type endHandlerFunc func(now VTimeInSec)

func (f endHandlerFunc) Handle(now VTimeInSec) {
	f(now)
}
