// Package simlink provides a simulated wire for sans-I/O interfaces. A Link
// polls every attached port, drains the frames each port transmitted and
// hands them to every other port, the way a hub or a point-to-point cable
// would. It exists for tests and demos; nothing in it touches the network.
package simlink

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sionet"
	"github.com/opd-ai/sionet/logging"
)

// Port is one end attached to a Link. *sionet.Interface implements it.
type Port interface {
	PutRxPacket(frame []byte) error
	TxQueueLen() int
	NextTxPacketSize() int
	PopTxPacket(dst []byte) (int, error)
	Poll() (sionet.PollStats, error)
}

// PortID identifies an attached port.
type PortID int

// DeliveryRecord is one frame handed from one port to another.
type DeliveryRecord struct {
	From      PortID
	To        PortID
	Size      int
	Timestamp time.Time
	Success   bool
	Error     error
}

// Stats summarizes the link activity since the last ClearDeliveryLog.
type Stats struct {
	Ports     int
	Frames    int // frames drained from ports
	Delivered int
	Failed    int
	Dropped   int // frames discarded by the drop filter
}

// DropFilter decides whether a drained frame is lost on the wire.
type DropFilter func(from PortID, frame []byte) bool

// Link is a simulated shared medium. It is safe for concurrent use.
type Link struct {
	mu      sync.Mutex
	ports   map[PortID]Port
	order   []PortID
	nextID  PortID
	drop    DropFilter
	records []DeliveryRecord
	frames  int
	dropped int
	log     *logrus.Logger
}

// New creates an empty link. A nil logger discards output.
func New(logger *logrus.Logger) *Link {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Link{ports: make(map[PortID]Port), log: logger}
}

// Attach connects p and returns its id.
func (l *Link) Attach(p Port) PortID {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.ports[id] = p
	l.order = append(l.order, id)

	logging.New(l.log, "simlink", "Attach").
		WithField("port", id).
		WithField("total_ports", len(l.ports)).
		Debug("Port attached")
	return id
}

// Detach disconnects a port. Unknown ids are ignored.
func (l *Link) Detach(id PortID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.ports[id]; !ok {
		return
	}
	delete(l.ports, id)
	for i, p := range l.order {
		if p == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// SetDropFilter installs f, or removes the filter when f is nil.
func (l *Link) SetDropFilter(f DropFilter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drop = f
}

// Step polls every port once in attach order and delivers the frames each
// produced to every other port. Delivered frames are processed by the
// receivers on the next Step. It returns the number of frames drained.
func (l *Link) Step() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	moved := 0
	for _, from := range l.order {
		port := l.ports[from]
		if _, err := port.Poll(); err != nil {
			return moved, fmt.Errorf("simlink: poll port %d: %w", from, err)
		}
		for port.TxQueueLen() > 0 {
			frame := make([]byte, port.NextTxPacketSize())
			n, err := port.PopTxPacket(frame)
			if err != nil {
				return moved, fmt.Errorf("simlink: drain port %d: %w", from, err)
			}
			frame = frame[:n]
			moved++
			l.frames++
			if l.drop != nil && l.drop(from, frame) {
				l.dropped++
				continue
			}
			l.deliver(from, frame)
		}
	}
	return moved, nil
}

// deliver must be called with l.mu held.
func (l *Link) deliver(from PortID, frame []byte) {
	now := time.Now()
	for _, to := range l.order {
		if to == from {
			continue
		}
		err := l.ports[to].PutRxPacket(frame)
		l.records = append(l.records, DeliveryRecord{
			From:      from,
			To:        to,
			Size:      len(frame),
			Timestamp: now,
			Success:   err == nil,
			Error:     err,
		})
		if err != nil {
			logging.New(l.log, "simlink", "deliver").
				WithField("from", from).
				WithField("to", to).
				WithFields(logging.FrameFields(frame, "frame")).
				WithField("error", err.Error()).
				Debug("Frame rejected by receiver")
		}
	}
}

// RunUntil steps the link until cond holds or maxSteps steps ran, sleeping
// interval between steps so the stack's own goroutines can make progress.
// It reports whether cond was met.
func (l *Link) RunUntil(cond func() bool, maxSteps int, interval time.Duration) (bool, error) {
	for i := 0; i < maxSteps; i++ {
		if _, err := l.Step(); err != nil {
			return false, err
		}
		if cond() {
			return true, nil
		}
		time.Sleep(interval)
	}
	return false, nil
}

// DeliveryLog returns a copy of every delivery since the last clear.
func (l *Link) DeliveryLog() []DeliveryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]DeliveryRecord, len(l.records))
	copy(out, l.records)
	return out
}

// ClearDeliveryLog resets the delivery log and counters.
func (l *Link) ClearDeliveryLog() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.frames = 0
	l.dropped = 0
}

// Stats returns the activity counters.
func (l *Link) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{Ports: len(l.ports), Frames: l.frames, Dropped: l.dropped}
	for _, r := range l.records {
		if r.Success {
			s.Delivered++
		} else {
			s.Failed++
		}
	}
	return s
}
