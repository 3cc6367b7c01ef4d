package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"matchengine/internal/balance"
	"matchengine/internal/market"
	"matchengine/pkg/types"
)

// record is the newline-delimited JSON envelope written to the archival
// log: one line per event, tagged by kind so a reader can dispatch without
// guessing from shape alone.
type record struct {
	Kind string      `json:"kind"`
	At   string      `json:"at"`
	Data interface{} `json:"data"`
}

// File is an append-only, newline-delimited JSON sink for archival and
// debugging, the direct analogue of a persistor that flushes every line to
// the file rather than batching (it does not fsync). ServiceAvailable
// reports false only once the underlying file handle has failed.
type File struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	broken bool
}

// OpenFile creates or appends to path.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	return &File{f: f, w: bufio.NewWriter(f)}, nil
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.f.Close()
}

func (s *File) ServiceAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.broken
}

func (s *File) write(kind string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return
	}
	line, err := json.Marshal(record{Kind: kind, At: time.Now().UTC().Format(time.RFC3339Nano), Data: data})
	if err != nil {
		s.broken = true
		return
	}
	if _, err := s.w.Write(line); err != nil {
		s.broken = true
		return
	}
	if err := s.w.WriteByte('\n'); err != nil {
		s.broken = true
		return
	}
	if err := s.w.Flush(); err != nil {
		s.broken = true
	}
}

func (s *File) PutBalance(h balance.History)  { s.write("balance", h) }
func (s *File) PutDeposit(h balance.History)  { s.write("deposit", h) }
func (s *File) PutWithdraw(h balance.History) { s.write("withdraw", h) }
func (s *File) PutOrder(o *market.Order, event types.OrderEventType) {
	s.write("order", MemoryOrderEvent{Order: o, Event: event})
}
func (s *File) PutTrade(t *market.Trade)          { s.write("trade", t) }
func (s *File) PutTransfer(tx types.InternalTx)   { s.write("transfer", tx) }
