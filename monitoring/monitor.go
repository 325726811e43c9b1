// Package monitoring turns a running simulation into a web server that can
// be used to inspect and control it.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/qnet/monitoring/web"
	"github.com/sarchlab/qnet/qmem"
	"github.com/sarchlab/qnet/reservation"
	"github.com/sarchlab/qnet/resource"
	"github.com/sarchlab/qnet/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"
)

// Node is a quantum router that the monitor can inspect.
type Node interface {
	sim.Named

	MemoryArray() *qmem.Array
	ResourceManager() *resource.Manager
	ReservationProtocol() *reservation.Protocol
}

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	engine      sim.Engine
	nodes       []Node
	portNumber  int
	openBrowser bool
	logger      *logrus.Entry

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		logger: logrus.WithField("component", "monitor"),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warnf("Port number %d is not allowed for the monitoring "+
			"server. Using a random port instead.", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open the default browser once the server
// starts.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterNode registers a node to be monitored.
func (m *Monitor) RegisterNode(n Node) {
	m.nodes = append(m.nodes, n)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/nodes", m.listNodes)
	r.HandleFunc("/api/node/{name}", m.nodeDetails)
	r.HandleFunc("/api/node/{name}/memories", m.listMemories)
	r.HandleFunc("/api/node/{name}/rules", m.listRules)
	r.HandleFunc("/api/node/{name}/timecards", m.listTimeCards)
	r.HandleFunc("/api/node/{name}/reservations", m.listReservations)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the port it
// listens on.
func (m *Monitor) StartServer() (int, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return 0, fmt.Errorf("monitor: listen on %s: %w", actualPort, err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://localhost:%d", port)

	m.logger.Infof("Monitoring simulation with %s", url)

	go func() {
		err := http.Serve(listener, m.router())
		if err != nil {
			m.logger.WithError(err).Error("monitoring server stopped")
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.WithError(err).Warn("cannot open browser")
		}
	}

	return port, nil
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", float64(now))
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	go func() {
		err := m.engine.Run()
		if err != nil {
			m.logger.WithError(err).Error("simulation failed")
		}
	}()

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) listNodes(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.nodes))
	for _, n := range m.nodes {
		names = append(names, n.Name())
	}

	m.writeJSON(w, names)
}

func (m *Monitor) nodeDetails(w http.ResponseWriter, r *http.Request) {
	n := m.findNodeOr404(w, mux.Vars(r)["name"])
	if n == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(n)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		m.fail(w, err)
	}
}

type fieldReq struct {
	NodeName  string `json:"node_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	n := m.findNodeOr404(w, req.NodeName)
	if n == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(n)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	if err := serializer.Serialize(w); err != nil {
		m.fail(w, err)
	}
}

type memoryRsp struct {
	Name         string  `json:"name"`
	Index        int     `json:"index"`
	State        string  `json:"state"`
	RemoteNode   string  `json:"remote_node,omitempty"`
	RemoteMemo   string  `json:"remote_memo,omitempty"`
	Fidelity     float64 `json:"fidelity"`
	EntangleTime float64 `json:"entangle_time"`
	Owner        string  `json:"owner"`
}

func (m *Monitor) listMemories(w http.ResponseWriter, r *http.Request) {
	n := m.findNodeOr404(w, mux.Vars(r)["name"])
	if n == nil {
		return
	}

	infos := n.ResourceManager().MemoryManager().Infos()
	rsp := make([]memoryRsp, 0, len(infos))

	for _, info := range infos {
		rsp = append(rsp, memoryRsp{
			Name:         info.Memory.Name(),
			Index:        info.Index,
			State:        string(info.State),
			RemoteNode:   info.RemoteNode,
			RemoteMemo:   info.RemoteMemo,
			Fidelity:     info.Fidelity,
			EntangleTime: float64(info.EntangleTime),
			Owner:        ownerName(info.Memory),
		})
	}

	m.writeJSON(w, rsp)
}

func ownerName(memory *qmem.Memory) string {
	if named, ok := memory.Owner().(sim.Named); ok {
		return named.Name()
	}

	return ""
}

type ruleRsp struct {
	Priority    int      `json:"priority"`
	Reservation string   `json:"reservation,omitempty"`
	Protocols   []string `json:"protocols"`
}

func (m *Monitor) listRules(w http.ResponseWriter, r *http.Request) {
	n := m.findNodeOr404(w, mux.Vars(r)["name"])
	if n == nil {
		return
	}

	rules := n.ResourceManager().RuleManager().Rules()
	rsp := make([]ruleRsp, 0, len(rules))

	for _, rule := range rules {
		entry := ruleRsp{Priority: rule.Priority, Protocols: []string{}}
		if rule.Reservation != nil {
			entry.Reservation = rule.Reservation.ReservationID()
		}

		for _, p := range rule.Protocols() {
			entry.Protocols = append(entry.Protocols, p.Name())
		}

		rsp = append(rsp, entry)
	}

	m.writeJSON(w, rsp)
}

type intervalRsp struct {
	Reservation string  `json:"reservation"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
}

type timeCardRsp struct {
	Index        int           `json:"index"`
	Reservations []intervalRsp `json:"reservations"`
}

func (m *Monitor) listTimeCards(w http.ResponseWriter, r *http.Request) {
	n := m.findNodeOr404(w, mux.Vars(r)["name"])
	if n == nil {
		return
	}

	cards := n.ReservationProtocol().TimeCards()
	rsp := make([]timeCardRsp, 0, len(cards))

	for _, card := range cards {
		entry := timeCardRsp{Index: card.Index, Reservations: []intervalRsp{}}
		for _, res := range card.Reservations() {
			entry.Reservations = append(entry.Reservations, intervalRsp{
				Reservation: res.ID,
				Start:       float64(res.StartTime),
				End:         float64(res.EndTime),
			})
		}

		rsp = append(rsp, entry)
	}

	m.writeJSON(w, rsp)
}

type reservationRsp struct {
	ID         string   `json:"id"`
	Initiator  string   `json:"initiator"`
	Responder  string   `json:"responder"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	MemorySize int      `json:"memory_size"`
	Fidelity   float64  `json:"fidelity"`
	Path       []string `json:"path"`
	Memories   []int    `json:"memories"`
}

func (m *Monitor) listReservations(w http.ResponseWriter, r *http.Request) {
	n := m.findNodeOr404(w, mux.Vars(r)["name"])
	if n == nil {
		return
	}

	protocol := n.ReservationProtocol()
	accepted := protocol.Accepted()
	rsp := make([]reservationRsp, 0, len(accepted))

	for _, res := range accepted {
		rsp = append(rsp, reservationRsp{
			ID:         res.ID,
			Initiator:  res.Initiator,
			Responder:  res.Responder,
			Start:      float64(res.StartTime),
			End:        float64(res.EndTime),
			MemorySize: res.MemorySize,
			Fidelity:   res.Fidelity,
			Path:       res.Path,
			Memories:   protocol.Scheduled(res),
		})
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) findNodeOr404(w http.ResponseWriter, name string) Node {
	for _, n := range m.nodes {
		if n.Name() == name {
			return n
		}
	}

	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, "Node not found")

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.fail(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.fail(w, err)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.fail(w, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(data); err != nil {
		m.logger.WithError(err).Warn("cannot write response")
	}
}

func (m *Monitor) fail(w http.ResponseWriter, err error) {
	m.logger.WithError(err).Error("monitor request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
