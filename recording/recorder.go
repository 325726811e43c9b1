package recording

import (
	"strconv"
	"strings"

	"github.com/sarchlab/qnet/reservation"
	"github.com/sarchlab/qnet/resource"
	"github.com/sarchlab/qnet/sim"
	"github.com/sirupsen/logrus"
)

// Table names used by the Recorder.
const (
	TableReservationResults  = "reservation_results"
	TableReservationAccepted = "reservation_accepted"
	TableRulesFired          = "rules_fired"
	TablePairings            = "pairings"
)

// ReservationResultEntry is a row of the initiator learning whether a
// reservation was approved.
type ReservationResultEntry struct {
	Time        float64
	Node        string
	Reservation string
	Initiator   string
	Responder   string
	StartTime   float64
	EndTime     float64
	MemorySize  int
	Fidelity    float64
	Approved    bool
}

// ReservationAcceptedEntry is a row of a node committing to a reservation.
type ReservationAcceptedEntry struct {
	Time        float64
	Node        string
	Reservation string
	Memories    string
}

// RuleFiredEntry is a row of a rule creating a protocol.
type RuleFiredEntry struct {
	Time        float64
	Node        string
	Reservation string
	Priority    int
	Protocol    string
}

// PairingEntry is a row of a protocol being paired, rejected or released.
type PairingEntry struct {
	Time     float64
	Node     string
	Event    string
	Protocol string
	Remote   string
}

// Recorder is a hook that writes control-plane events into a DataRecorder.
// Attach it to resource managers and reservation protocols.
type Recorder struct {
	recorder DataRecorder
	logger   *logrus.Entry
}

// NewRecorder creates the tables used by the Recorder.
func NewRecorder(dr DataRecorder) (*Recorder, error) {
	r := &Recorder{
		recorder: dr,
		logger:   logrus.WithField("component", "recorder"),
	}

	tables := []struct {
		name   string
		sample any
	}{
		{TableReservationResults, ReservationResultEntry{}},
		{TableReservationAccepted, ReservationAcceptedEntry{}},
		{TableRulesFired, RuleFiredEntry{}},
		{TablePairings, PairingEntry{}},
	}

	for _, t := range tables {
		if err := dr.CreateTable(t.name, t.sample); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Func records the event described by ctx.
func (r *Recorder) Func(ctx sim.HookCtx) {
	var (
		tableName string
		entry     any
	)

	now := float64(ctx.Now)
	node := domainName(ctx.Domain)

	switch ctx.Pos {
	case reservation.HookPosReservationResult:
		res := ctx.Item.(*reservation.Reservation)
		tableName = TableReservationResults
		entry = ReservationResultEntry{
			Time:        now,
			Node:        node,
			Reservation: res.ID,
			Initiator:   res.Initiator,
			Responder:   res.Responder,
			StartTime:   float64(res.StartTime),
			EndTime:     float64(res.EndTime),
			MemorySize:  res.MemorySize,
			Fidelity:    res.Fidelity,
			Approved:    ctx.Detail.(bool),
		}
	case reservation.HookPosReservationAccepted:
		res := ctx.Item.(*reservation.Reservation)
		tableName = TableReservationAccepted
		entry = ReservationAcceptedEntry{
			Time:        now,
			Node:        node,
			Reservation: res.ID,
			Memories:    joinInts(ctx.Detail.([]int)),
		}
	case resource.HookPosRuleFired:
		rule := ctx.Item.(*resource.Rule)
		e := RuleFiredEntry{
			Time:     now,
			Node:     node,
			Priority: rule.Priority,
			Protocol: ctx.Detail.(resource.Protocol).Name(),
		}

		if rule.Reservation != nil {
			e.Reservation = rule.Reservation.ReservationID()
		}

		tableName, entry = TableRulesFired, e
	case resource.HookPosProtocolPaired:
		msg := ctx.Detail.(*resource.Message)
		remote := msg.PairedProtocol
		if msg.Type == resource.MsgRequest {
			remote = msg.IniProtocol
		}

		tableName = TablePairings
		entry = PairingEntry{
			Time:     now,
			Node:     node,
			Event:    "paired",
			Protocol: ctx.Item.(resource.Protocol).Name(),
			Remote:   remote,
		}
	case resource.HookPosPairingRejected:
		msg := ctx.Detail.(*resource.Message)
		tableName = TablePairings
		entry = PairingEntry{
			Time:     now,
			Node:     node,
			Event:    "rejected",
			Protocol: msg.IniProtocol,
			Remote:   msg.Src,
		}
	case resource.HookPosProtocolReleased:
		tableName = TablePairings
		entry = PairingEntry{
			Time:     now,
			Node:     node,
			Event:    "released",
			Protocol: ctx.Item.(resource.Protocol).Name(),
		}
	default:
		return
	}

	if err := r.recorder.InsertData(tableName, entry); err != nil {
		r.logger.WithError(err).Error("cannot record event")
	}
}

func domainName(d sim.Hookable) string {
	if named, ok := d.(sim.Named); ok {
		return named.Name()
	}

	return ""
}

func joinInts(values []int) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}
