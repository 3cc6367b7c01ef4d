package controller

import (
	"encoding/json"
	"fmt"

	"matchengine/internal/cerr"
	"matchengine/pkg/types"
)

// Apply decodes one operation-log entry and re-runs it in real=false mode
// (no service-available gate, no new log entry, no emitted events) — this
// is the function oplog.Replay drives at startup, after the snapshot has
// been restored.
func (c *Controller) Apply(entry types.OperationLogEntry) error {
	switch entry.Method {
	case types.MethodBalanceUpdate:
		var req types.BalanceUpdateRequest
		if err := json.Unmarshal(entry.Params, &req); err != nil {
			return cerr.Wrap(cerr.Internal, "decode balance_update params", err)
		}
		_, err := c.BalanceUpdate(req, entry.Time, false)
		return err

	case types.MethodOrderPut:
		var req types.OrderPutRequest
		if err := json.Unmarshal(entry.Params, &req); err != nil {
			return cerr.Wrap(cerr.Internal, "decode order_put params", err)
		}
		_, _, err := c.OrderPut(req, entry.Time, false)
		return err

	case types.MethodBatchOrderPut:
		var req types.BatchOrderPutRequest
		if err := json.Unmarshal(entry.Params, &req); err != nil {
			return cerr.Wrap(cerr.Internal, "decode batch_order_put params", err)
		}
		_, err := c.BatchOrderPut(req, entry.Time, false)
		return err

	case types.MethodOrderCancel:
		var req types.OrderCancelRequest
		if err := json.Unmarshal(entry.Params, &req); err != nil {
			return cerr.Wrap(cerr.Internal, "decode order_cancel params", err)
		}
		_, err := c.OrderCancel(req, entry.Time, false)
		return err

	case types.MethodOrderCancelAll:
		var req types.OrderCancelAllRequest
		if err := json.Unmarshal(entry.Params, &req); err != nil {
			return cerr.Wrap(cerr.Internal, "decode order_cancel_all params", err)
		}
		_, err := c.OrderCancelAll(req, entry.Time, false)
		return err

	case types.MethodTransfer:
		var req types.TransferRequest
		if err := json.Unmarshal(entry.Params, &req); err != nil {
			return cerr.Wrap(cerr.Internal, "decode transfer params", err)
		}
		// req.BusinessID was generated once, at real-time application, and
		// is carried verbatim in the logged params, so replay reuses it.
		_, err := c.Transfer(req, entry.Time, false)
		return err

	default:
		return cerr.New(cerr.Internal, fmt.Sprintf("replay: unknown method %q", entry.Method))
	}
}
