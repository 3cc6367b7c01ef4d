package sink

import (
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"matchengine/internal/balance"
	"matchengine/internal/market"
	"matchengine/pkg/types"
)

// dbJob is one pending write to the embedded store.
type dbJob struct {
	key   []byte
	value []byte
}

// DBWriter is a bounded-queue asynchronous inserter backed by a pebble LSM
// store: PutOrder only persists terminal states (FINISH, EXPIRED), mirroring
// the original DB persistor, which only writes an order once it can no
// longer change. ServiceAvailable reports false once the queue is full, so
// the controller gates new mutations rather than letting this sink block
// the single writer.
type DBWriter struct {
	db     *pebble.DB
	logger *slog.Logger
	jobs   chan dbJob
	queued int64
	cap    int64
	seq    uint64
	done   chan struct{}
}

// OpenDBWriter opens (or creates) a pebble store at dir and starts its
// background drain goroutine. queueCap bounds how many pending writes may
// be outstanding before ServiceAvailable reports false.
func OpenDBWriter(dir string, queueCap int, logger *slog.Logger) (*DBWriter, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	w := &DBWriter{
		db:     db,
		logger: logger.With("component", "sink.dbwriter"),
		jobs:   make(chan dbJob, queueCap),
		cap:    int64(queueCap),
		done:   make(chan struct{}),
	}
	go w.drain()
	return w, nil
}

func (w *DBWriter) drain() {
	defer close(w.done)
	for j := range w.jobs {
		if err := w.db.Set(j.key, j.value, pebble.NoSync); err != nil {
			w.logger.Error("pebble write failed", "error", err)
		}
		atomic.AddInt64(&w.queued, -1)
	}
}

// Close stops accepting writes, drains the queue, and closes the store.
func (w *DBWriter) Close() error {
	close(w.jobs)
	<-w.done
	return w.db.Close()
}

func (w *DBWriter) ServiceAvailable() bool {
	return atomic.LoadInt64(&w.queued) < w.cap
}

func (w *DBWriter) nextKey(prefix string) []byte {
	n := atomic.AddUint64(&w.seq, 1)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], n)
	return key
}

func (w *DBWriter) enqueue(prefix string, v interface{}) {
	value, err := json.Marshal(v)
	if err != nil {
		w.logger.Error("marshal for pebble write failed", "error", err)
		return
	}
	job := dbJob{key: w.nextKey(prefix), value: value}
	select {
	case w.jobs <- job:
		atomic.AddInt64(&w.queued, 1)
	default:
		w.logger.Warn("dbwriter queue full, dropping write", "prefix", prefix)
	}
}

func (w *DBWriter) PutBalance(h balance.History)  { w.enqueue("balance/", h) }
func (w *DBWriter) PutDeposit(h balance.History)  { w.enqueue("deposit/", h) }
func (w *DBWriter) PutWithdraw(h balance.History) { w.enqueue("withdraw/", h) }

func (w *DBWriter) PutOrder(o *market.Order, event types.OrderEventType) {
	if event != types.OrderFinish && event != types.OrderExpired {
		return
	}
	w.enqueue("order/", MemoryOrderEvent{Order: o, Event: event})
}

func (w *DBWriter) PutTrade(t *market.Trade)        { w.enqueue("trade/", t) }
func (w *DBWriter) PutTransfer(tx types.InternalTx) { w.enqueue("transfer/", tx) }
