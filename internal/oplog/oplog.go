// Package oplog implements the append-only operation log (C9): the record
// that makes every accepted mutating operation replayable. The core itself
// only ever appends; persistence and replay are driven from here.
package oplog

import (
	"matchengine/pkg/types"
)

// Appender accepts one log entry at a time. Append must be cheap — the
// single writer calls it synchronously as the commit point of a mutating
// operation (§4.9c) — so a slow or blocking Appender stalls every mutation.
// Full reports whether the appender's backlog is large enough that new
// mutations should be rejected before they touch state (§4.8 step 1).
type Appender interface {
	Append(entry types.OperationLogEntry) error
	Full() bool
}

// Apply is the shape the controller exposes for replay: decode Params by
// Method and re-run the corresponding mutating call in real=false mode.
type Apply func(entry types.OperationLogEntry) error

// Replay drives entries through apply in order, skipping any with
// ID <= watermark (already covered by the loaded snapshot). It stops and
// returns the first error — replay failures are fatal to startup (§7).
func Replay(entries []types.OperationLogEntry, watermark uint64, apply Apply) error {
	for _, e := range entries {
		if e.ID <= watermark {
			continue
		}
		if err := apply(e); err != nil {
			return err
		}
	}
	return nil
}
