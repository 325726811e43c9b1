package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qnet/entanglement"
	"github.com/sarchlab/qnet/network"
	"github.com/sarchlab/qnet/node"
	"github.com/sarchlab/qnet/reservation"
	"github.com/sarchlab/qnet/sim"
)

var _ = Describe("Monitor", func() {
	var (
		m       *Monitor
		engine  *sim.SerialEngine
		routers []*node.QuantumRouter
	)

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		m.router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		net := network.NewNetwork(engine)
		physics := entanglement.MakePhysicsBuilder().Build()

		routers = nil
		for _, name := range []string{"a", "b"} {
			r := node.MakeBuilder().
				WithEngine(engine).
				WithNetwork(net).
				WithPhysics(physics).
				WithMemorySize(4).
				Build(name)
			routers = append(routers, r)
		}
		net.Connect("a", "b", 0.1)

		m = NewMonitor()
		m.RegisterEngine(engine)
		for _, r := range routers {
			m.RegisterNode(r)
		}
	})

	It("should reject low port numbers", func() {
		m.WithPortNumber(80)

		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)

		Expect(m.portNumber).To(Equal(8080))
	})

	It("should list nodes", func() {
		rec := get("/api/nodes")

		var names []string
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(Equal([]string{"a", "b"}))
	})

	It("should report the current time", func() {
		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("{\"now\":0.0000000000}"))
	})

	It("should pause and continue the engine", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
	})

	It("should answer 404 for unknown nodes", func() {
		rec := get("/api/node/x/memories")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should list the memory table", func() {
		rec := get("/api/node/a/memories")

		var rsp []memoryRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(4))
		for i, entry := range rsp {
			Expect(entry.Index).To(Equal(i))
			Expect(entry.State).To(Equal("RAW"))
		}
	})

	It("should list time cards and accepted reservations", func() {
		r, err := reservation.NewReservation("a", "b", 1, 2, 2, 0.9, 1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(routers[0].ReservationProtocol().Schedule(r)).To(BeTrue())

		rec := get("/api/node/a/timecards")

		var cards []timeCardRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &cards)).To(Succeed())
		Expect(cards).To(HaveLen(4))
		Expect(cards[0].Reservations).To(HaveLen(1))
		Expect(cards[0].Reservations[0].Reservation).To(Equal(r.ID))
		Expect(cards[2].Reservations).To(BeEmpty())

		rec = get("/api/node/a/reservations")

		var accepted []reservationRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &accepted)).To(Succeed())
		Expect(accepted).To(BeEmpty())
	})

	It("should list the loaded rules", func() {
		rec := get("/api/node/a/rules")

		var rules []ruleRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rules)).To(Succeed())
		Expect(rules).To(BeEmpty())
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("requests", 2)
		bar.IncrementInProgress(2)
		bar.MoveInProgressToFinished(1)

		rec := get("/api/progress")
		Expect(rec.Body.String()).To(ContainSubstring("\"finished\":1"))
		Expect(bar.Done()).To(BeFalse())

		bar.MoveInProgressToFinished(5)
		Expect(bar.Done()).To(BeTrue())

		m.CompleteProgressBar(bar)
		Expect(m.progressBars).To(BeEmpty())
	})

	It("should serve the page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})
})
