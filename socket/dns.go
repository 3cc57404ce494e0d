package socket

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/dns/dnsmessage"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"

	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/handle"
	"github.com/opd-ai/sionet/logging"
)

// QueryHandle identifies a query inside its DNS socket.
type QueryHandle = handle.Handle

const (
	dnsPort = 53

	// DefaultMaxQueries is the number of concurrent queries per DNS socket.
	DefaultMaxQueries = 4

	maxNameLength  = 255
	maxLabelLength = 63
	maxMessageSize = 512

	retransmitInterval = time.Second
	queryTimeout       = 10 * time.Second
)

type queryState uint8

const (
	queryPending queryState = iota
	queryDone
	queryFailed
)

type dnsQuery struct {
	name      dnsmessage.Name
	qtype     dnsmessage.Type
	id        uint16
	server    int
	startedAt time.Time
	sentAt    time.Time
	state     queryState
	addrs     []address.Address
}

// DNSSocket resolves names against a fixed list of servers over UDP.
type DNSSocket struct {
	datagramEndpoint
	servers    []address.Address
	queries    *handle.Table[*dnsQuery]
	maxQueries int
	logger     *logrus.Logger
}

// Kind implements Socket.
func (s *DNSSocket) Kind() Kind { return KindDNS }

// Close implements Socket. Every query handle of the socket becomes stale.
func (s *DNSSocket) Close() {
	s.queries.Clear()
	s.close()
}

// NewDNS creates a DNS socket using servers in order. Servers of the other
// address family than the interface are ignored. maxQueries <= 0 selects
// DefaultMaxQueries.
func NewDNS(ctx Context, servers []address.Address, maxQueries int) (Handle, error) {
	if maxQueries <= 0 {
		maxQueries = DefaultMaxQueries
	}
	netProto := ctx.NetworkProtocol()
	s := &DNSSocket{
		queries:    handle.NewTable[*dnsQuery](handle.KindDNSQuery),
		maxQueries: maxQueries,
		logger:     ctx.Logger(),
	}
	for _, srv := range servers {
		if !srv.IsUnspecified() && srv.NetworkProtocol() == netProto {
			s.servers = append(s.servers, srv)
		}
	}
	if len(s.servers) == 0 {
		return 0, ErrNoServers
	}

	ep, err := ctx.Stack().NewEndpoint(udp.ProtocolNumber, netProto, &s.wq)
	if err != nil {
		return 0, newOpError("dns new", 0, ErrCreate, err)
	}
	s.ep = ep
	if nerr := ep.Bind(tcpip.FullAddress{}); nerr != nil {
		ep.Close()
		return 0, newOpError("dns new", 0, ErrCreate, nerr)
	}
	s.bound = true
	return ctx.Sockets().Add(s)
}

// validateName checks name against DNS label and length rules and returns
// its canonical form.
func validateName(name string) (dnsmessage.Name, error) {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return dnsmessage.Name{}, DNSStartQueryInvalidName
	}
	encoded := 1
	for _, label := range strings.Split(name, ".") {
		if label == "" || len(label) > maxLabelLength {
			return dnsmessage.Name{}, DNSStartQueryInvalidName
		}
		encoded += len(label) + 1
	}
	if encoded > maxNameLength {
		return dnsmessage.Name{}, DNSStartQueryNameTooLong
	}
	n, err := dnsmessage.NewName(name + ".")
	if err != nil {
		return dnsmessage.Name{}, DNSStartQueryInvalidName
	}
	return n, nil
}

func buildQuery(q *dnsQuery) ([]byte, error) {
	b := dnsmessage.NewBuilder(make([]byte, 0, maxMessageSize), dnsmessage.Header{
		ID:               q.id,
		RecursionDesired: true,
	})
	b.EnableCompression()
	if err := b.StartQuestions(); err != nil {
		return nil, err
	}
	if err := b.Question(dnsmessage.Question{Name: q.name, Type: q.qtype, Class: dnsmessage.ClassINET}); err != nil {
		return nil, err
	}
	return b.Finish()
}

// transmit sends q to its current server and records the send time. Send
// failures leave the query to the next retransmission.
func (s *DNSSocket) transmit(q *dnsQuery, now time.Time) {
	q.sentAt = now
	msg, err := buildQuery(q)
	if err != nil {
		q.state = queryFailed
		return
	}
	srv := s.servers[q.server%len(s.servers)]
	if _, nerr := s.send(msg, tcpip.FullAddress{Addr: srv.Native(), Port: dnsPort}); nerr != nil {
		logging.New(s.logger, "socket", "transmit").
			WithField("server", srv.String()).
			WithField("native_error", nerr.String()).
			Debug("DNS query send failed")
	}
}

func (s *DNSSocket) pendingByID(id uint16) *dnsQuery {
	var found *dnsQuery
	s.queries.Range(func(_ QueryHandle, q *dnsQuery) bool {
		if q.state == queryPending && q.id == id {
			found = q
			return false
		}
		return true
	})
	return found
}

// handleResponse applies one response datagram to its pending query.
// Responses that match no query are ignored.
func (s *DNSSocket) handleResponse(msg []byte) {
	var p dnsmessage.Parser
	hdr, err := p.Start(msg)
	if err != nil || !hdr.Response {
		return
	}
	q := s.pendingByID(hdr.ID)
	if q == nil {
		return
	}
	question, err := p.Question()
	if err != nil || question.Type != q.qtype || !strings.EqualFold(question.Name.String(), q.name.String()) {
		return
	}
	if err := p.SkipAllQuestions(); err != nil {
		q.state = queryFailed
		return
	}
	if hdr.RCode != dnsmessage.RCodeSuccess {
		q.state = queryFailed
		return
	}

answers:
	for {
		ah, err := p.AnswerHeader()
		if err != nil {
			break
		}
		switch ah.Type {
		case dnsmessage.TypeA:
			r, err := p.AResource()
			if err != nil {
				break answers
			}
			if q.qtype == dnsmessage.TypeA {
				a, _ := address.FromSlice(r.A[:])
				q.addrs = append(q.addrs, a)
			}
		case dnsmessage.TypeAAAA:
			r, err := p.AAAAResource()
			if err != nil {
				break answers
			}
			if q.qtype == dnsmessage.TypeAAAA {
				a, _ := address.FromSlice(r.AAAA[:])
				q.addrs = append(q.addrs, a)
			}
		default:
			if err := p.SkipAnswer(); err != nil {
				break answers
			}
		}
	}
	if len(q.addrs) == 0 {
		q.state = queryFailed
		return
	}
	q.state = queryDone
}

func (s *DNSSocket) poll(now time.Time) {
	if s.closed {
		return
	}
	buf := make([]byte, maxMessageSize)
	for {
		n, _, ok, err := s.recv(buf)
		if !ok {
			break
		}
		if err != nil {
			// Oversized datagram: drop it.
			s.ep.Read(io.Discard, tcpip.ReadOptions{})
			continue
		}
		s.handleResponse(buf[:n])
	}

	s.queries.Range(func(_ QueryHandle, q *dnsQuery) bool {
		if q.state != queryPending {
			return true
		}
		switch {
		case now.Sub(q.startedAt) >= queryTimeout:
			q.state = queryFailed
			logging.New(s.logger, "socket", "poll").
				WithField("name", q.name.String()).
				Debug("DNS query timed out")
		case now.Sub(q.sentAt) >= retransmitInterval:
			q.server++
			s.transmit(q, now)
		}
		return true
	})
}

// DNSStartQuery starts resolving name for records of qtype, which must be
// TypeA or TypeAAAA. The query is sent immediately and retransmitted on
// later polls. Its deadlines are measured on the clock of ctx.
func DNSStartQuery(ctx Context, h Handle, name string, qtype dnsmessage.Type) (QueryHandle, error) {
	s, err := lookup[*DNSSocket](ctx.Sockets(), h)
	if err != nil {
		return handle.Null, err
	}
	if qtype != dnsmessage.TypeA && qtype != dnsmessage.TypeAAAA {
		return handle.Null, newOpError("dns start query", h, DNSStartQueryInvalidName, nil)
	}
	n, err := validateName(name)
	if err != nil {
		return handle.Null, newOpError("dns start query", h, err, nil)
	}
	if s.closed || s.queries.Len() >= s.maxQueries {
		return handle.Null, newOpError("dns start query", h, DNSStartQueryNoFreeSlot, nil)
	}

	now := ctx.Now()
	q := &dnsQuery{
		name:      n,
		qtype:     qtype,
		id:        uint16(rand.IntN(1 << 16)),
		startedAt: now,
	}
	qh := s.queries.Insert(q)
	s.transmit(q, now)

	logging.New(ctx.Logger(), "socket", "DNSStartQuery").
		WithField("name", n.String()).
		WithField("type", qtype.String()).
		WithField("query", fmt.Sprint(qh)).
		Debug("DNS query started")
	return qh, nil
}

// DNSGetQueryResult returns the addresses resolved by q. While the query is
// in flight it fails with DNSQueryPending. Once it returns anything else the
// query is released and q becomes stale.
func DNSGetQueryResult(ctx Context, h Handle, qh QueryHandle) ([]address.Address, error) {
	s, err := lookup[*DNSSocket](ctx.Sockets(), h)
	if err != nil {
		return nil, err
	}
	q, err := s.queries.Get(qh)
	if err != nil {
		return nil, err
	}
	switch q.state {
	case queryPending:
		return nil, newOpError("dns query result", h, DNSQueryPending, nil)
	case queryFailed:
		_ = s.queries.Remove(qh)
		return nil, newOpError("dns query result", h, DNSQueryFailed, nil)
	default:
		_ = s.queries.Remove(qh)
		return q.addrs, nil
	}
}

// DNSCancelQuery abandons q and releases its slot.
func DNSCancelQuery(ctx Context, h Handle, qh QueryHandle) error {
	s, err := lookup[*DNSSocket](ctx.Sockets(), h)
	if err != nil {
		return err
	}
	return s.queries.Remove(qh)
}
