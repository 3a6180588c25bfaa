// Package rail simulates interbank settlement networks.
package rail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/moneyflow/internal/money"
	"github.com/congo-pay/moneyflow/internal/transfer"
)

// ErrInjected is returned when a failure was injected for a reference.
var ErrInjected = errors.New("injected rail failure")

// Simulator is a transfer.Rail with tunable latency and outcomes.
type Simulator struct {
	name     string
	latency  time.Duration
	maxPerTx money.Money
	hasLimit bool

	mu       sync.Mutex
	failNext int
	calls    map[string]transfer.RailResponse
}

// Option tunes a Simulator.
type Option func(*Simulator)

// WithLatency delays every answer.
func WithLatency(d time.Duration) Option {
	return func(s *Simulator) { s.latency = d }
}

// WithDeclineAbove rejects amounts above limit.
func WithDeclineAbove(limit money.Money) Option {
	return func(s *Simulator) {
		s.maxPerTx = limit
		s.hasLimit = true
	}
}

// NewSimulator builds a rail simulator named after the network it stands in for.
func NewSimulator(name string, opts ...Option) *Simulator {
	s := &Simulator{name: name, calls: make(map[string]transfer.RailResponse)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next n calls error out as if the network were down.
func (s *Simulator) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Calls returns how many distinct references were settled or rejected.
func (s *Simulator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Transfer answers after the configured latency unless ctx ends first. The
// same reference number always gets the same answer.
func (s *Simulator) Transfer(ctx context.Context, req transfer.RailRequest) (transfer.RailResponse, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return transfer.RailResponse{}, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.calls[req.ReferenceNumber]; ok {
		return prior, nil
	}
	if s.failNext > 0 {
		s.failNext--
		return transfer.RailResponse{}, fmt.Errorf("%s: %w", s.name, ErrInjected)
	}

	resp := transfer.RailResponse{
		Status:        transfer.RailSuccess,
		RailReference: strings.ToUpper(s.name) + "-" + uuid.NewString()[:8],
		Message:       "settled",
	}
	if s.hasLimit {
		if over, err := req.Amount.GreaterThan(s.maxPerTx); err != nil || over {
			resp.Status = transfer.RailFailed
			resp.Message = fmt.Sprintf("amount above %s limit %s", s.name, s.maxPerTx)
		}
	}
	s.calls[req.ReferenceNumber] = resp
	return resp, nil
}

// DefaultRails wires one simulator per external transfer type.
func DefaultRails(latency time.Duration) transfer.Rails {
	return transfer.Rails{
		transfer.TypeBIFast: NewSimulator("bifast", WithLatency(latency), WithDeclineAbove(money.MustOf("250000000", "IDR"))),
		transfer.TypeSKN:    NewSimulator("skn", WithLatency(latency), WithDeclineAbove(money.MustOf("1000000000", "IDR"))),
		transfer.TypeRTGS:   NewSimulator("rtgs", WithLatency(latency)),
	}
}
