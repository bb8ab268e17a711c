package metrics

import (
	"sync"
	"time"
)

// Collector counts call lifecycle events and tracks turn latency. Safe for
// concurrent use.
type Collector struct {
	mu sync.Mutex

	callsStarted uint64
	callsEnded   uint64
	turns        uint64
	finalized    uint64

	turnTotal time.Duration
	turnMax   time.Duration
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) CallStarted() {
	c.mu.Lock()
	c.callsStarted++
	c.mu.Unlock()
}

func (c *Collector) CallEnded() {
	c.mu.Lock()
	c.callsEnded++
	c.mu.Unlock()
}

func (c *Collector) TurnProcessed(d time.Duration) {
	c.mu.Lock()
	c.turns++
	c.turnTotal += d
	if d > c.turnMax {
		c.turnMax = d
	}
	c.mu.Unlock()
}

func (c *Collector) InteractionFinalized() {
	c.mu.Lock()
	c.finalized++
	c.mu.Unlock()
}

// Snapshot is a point-in-time copy of the collected counters.
type Snapshot struct {
	CallsStarted          uint64 `json:"callsStarted"`
	CallsEnded            uint64 `json:"callsEnded"`
	TurnsProcessed        uint64 `json:"turnsProcessed"`
	InteractionsFinalized uint64 `json:"interactionsFinalized"`
	AvgTurnMS             int64  `json:"avgTurnMs"`
	MaxTurnMS             int64  `json:"maxTurnMs"`
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		CallsStarted:          c.callsStarted,
		CallsEnded:            c.callsEnded,
		TurnsProcessed:        c.turns,
		InteractionsFinalized: c.finalized,
		MaxTurnMS:             c.turnMax.Milliseconds(),
	}
	if c.turns > 0 {
		s.AvgTurnMS = (c.turnTotal / time.Duration(c.turns)).Milliseconds()
	}
	return s
}
