// Package snapshot implements periodic full-state serialization (C11) and
// restoring live state from the newest snapshot. Replaying the
// operation-log entries that postdate it is done by internal/engine.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"matchengine/internal/asset"
	"matchengine/internal/balance"
	"matchengine/internal/market"
	"matchengine/internal/sequencer"
	"matchengine/pkg/types"
)

// State is the full logical snapshot layout (§6): watermarks, every asset
// and market config, every balance, and every open order with full fields.
type State struct {
	Watermarks types.Watermarks       `json:"watermarks"`
	Assets     []asset.Asset          `json:"assets"`
	Markets    []market.Config        `json:"markets"`
	Balances   []balance.BalanceEntry `json:"balances"`
	Orders     []*market.Order        `json:"orders"`
}

// Store persists snapshots to a directory as JSON files, one per snapshot,
// using the teacher's write-to-.tmp-then-rename discipline so a crash mid
// write never leaves a corrupt file on disk.
type Store struct {
	dir string
}

// Open ensures dir exists and returns a Store rooted there.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) pathFor(opLogID uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("snapshot_%020d.json", opLogID))
}

// Save atomically persists st, named by the op-log id it covers.
func (s *Store) Save(st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	path := s.pathFor(st.Watermarks.OpLog)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadLatest finds and loads the newest complete snapshot in the
// directory. Returns false, nil if none exists (fresh start).
func (s *Store) LoadLatest() (State, bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("snapshot: list dir: %w", err)
	}

	var newest string
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		if newest == "" || name > newest {
			newest = name
		}
	}
	if newest == "" {
		return State{}, false, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, newest))
	if err != nil {
		return State{}, false, fmt.Errorf("snapshot: read %s: %w", newest, err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, fmt.Errorf("snapshot: decode %s: %w", newest, err)
	}
	return st, true, nil
}

// Build reads a consistent point-in-time State out of the live components.
// The caller is responsible for holding whatever lock makes this a single
// atomic read relative to mutating operations (§4.11 says a read lock on
// state suffices).
func Build(seq *sequencer.Sequencer, assets *asset.Registry, ledger *balance.Ledger, engine *market.Engine) State {
	opLog, order, trade := seq.Watermarks()
	return State{
		Watermarks: types.Watermarks{OpLog: opLog, Order: order, Trade: trade},
		Assets:     assets.List(),
		Markets:    engine.AllConfigs(),
		Balances:   ledger.All(),
		Orders:     engine.DumpOpenOrders(),
	}
}

// Restore rebuilds live state from a loaded snapshot: assets and markets
// first (orders and balances reference them), then balances, then resting
// orders, then the sequencer watermarks so newly issued ids continue past
// every id the snapshot recorded.
func Restore(st State, seq *sequencer.Sequencer, assets *asset.Registry, ledger *balance.Ledger, engine *market.Engine) error {
	if err := assets.Append(st.Assets); err != nil {
		return fmt.Errorf("snapshot: restore assets: %w", err)
	}
	if err := engine.AppendMarkets(st.Markets); err != nil {
		return fmt.Errorf("snapshot: restore markets: %w", err)
	}
	for _, b := range st.Balances {
		ledger.Restore(b)
	}
	for _, o := range st.Orders {
		if err := engine.RestoreOrder(o); err != nil {
			return fmt.Errorf("snapshot: restore order %d: %w", o.ID, err)
		}
	}
	seq.Reset(st.Watermarks.OpLog, st.Watermarks.Order, st.Watermarks.Trade)
	return nil
}
