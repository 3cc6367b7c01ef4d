package market

import (
	"github.com/google/uuid"

	"matchengine/internal/money"
	"matchengine/pkg/types"
)

// cross repeatedly matches taker against the opposite side's best resting
// order until one of the stop conditions in §4.7 fires. It mutates taker
// in place and returns every trade produced. cancelled reports that taker
// itself was rejected outright (post-only crossing) — in that case its
// pre-freeze has already been refunded and the caller must not insert it.
func (e *Engine) cross(b *book, cfg Config, taker *Order, now float64) (trades []*Trade, cancelled bool, err error) {
	opp := taker.Side.Opposite()

	for {
		if taker.Remain.IsZero() {
			break
		}
		maker := b.best(opp)
		if maker == nil {
			break
		}
		if taker.Type == types.Limit {
			var doesntCross bool
			if taker.Side == types.Ask {
				doesntCross = taker.Price.GreaterThan(maker.Price)
			} else {
				doesntCross = taker.Price.LessThan(maker.Price)
			}
			if doesntCross {
				break
			}
		}
		if taker.Type == types.Market && taker.Side == types.Bid && taker.QuoteLimit.IsSignPositive() &&
			taker.FinishedQuote.GreaterOrEqual(taker.QuoteLimit) {
			break
		}

		if maker.UserID == taker.UserID && e.DisableSelfTrade {
			if err := e.cancelOrder(b, maker); err != nil {
				return trades, false, err
			}
			continue
		}

		if taker.Type == types.Limit && taker.PostOnly {
			if err := e.refundTaker(taker); err != nil {
				return trades, false, err
			}
			e.sink.PutOrder(taker, types.OrderFinish)
			return trades, true, nil
		}

		tradeAmount := minDecimal(taker.Remain, maker.Remain)
		if taker.Type == types.Market && taker.Side == types.Bid && taker.QuoteLimit.IsSignPositive() {
			remainingQuote := taker.QuoteLimit.Sub(taker.FinishedQuote)
			maxBase, divErr := remainingQuote.Div(maker.Price)
			if divErr != nil {
				return trades, false, divErr
			}
			maxBase = maxBase.FloorDP(cfg.AmountPrec)
			if maxBase.LessThan(tradeAmount) {
				tradeAmount = maxBase
			}
		}
		if !tradeAmount.IsSignPositive() {
			break
		}

		quoteAmount := maker.Price.Mul(tradeAmount).RoundDP(cfg.PricePrec + cfg.AmountPrec)

		var askOrder, bidOrder *Order
		if taker.Side == types.Ask {
			askOrder, bidOrder = taker, maker
		} else {
			askOrder, bidOrder = maker, taker
		}
		buyer, seller := bidOrder, askOrder

		buyerRate := buyer.MakerFee
		if buyer == taker {
			buyerRate = buyer.TakerFee
		}
		sellerRate := seller.MakerFee
		if seller == taker {
			sellerRate = seller.TakerFee
		}
		buyerFee := tradeAmount.Mul(buyerRate).FloorDP(cfg.FeePrec)
		sellerFee := quoteAmount.Mul(sellerRate).FloorDP(cfg.FeePrec)

		// A LIMIT order (every maker, and a LIMIT taker) pays out of its own
		// pre-freeze; only a MARKET taker pays from AVAILABLE.
		baseSourcePartition := types.Available
		if seller.Type == types.Limit {
			baseSourcePartition = types.Frozen
		}
		quoteSourcePartition := types.Available
		if buyer.Type == types.Limit {
			quoteSourcePartition = types.Frozen
		}

		if err := e.settle(cfg, seller.UserID, buyer.UserID, baseSourcePartition, quoteSourcePartition,
			tradeAmount, quoteAmount, buyerFee, sellerFee); err != nil {
			return trades, false, err
		}

		if seller.Type == types.Limit {
			seller.Frozen = seller.Frozen.Sub(tradeAmount)
		}
		if buyer.Type == types.Limit {
			buyer.Frozen = buyer.Frozen.Sub(quoteAmount)
		}

		applyFill(taker, tradeAmount, quoteAmount, takerFeeAmount(taker, buyerFee, sellerFee, buyer), now)
		applyFill(maker, tradeAmount, quoteAmount, takerFeeAmount(maker, buyerFee, sellerFee, buyer), now)

		trade := &Trade{
			ID:             e.seq.NextTradeID(),
			Market:         cfg.Name,
			Price:          maker.Price,
			Amount:         tradeAmount,
			QuoteAmount:    quoteAmount,
			Timestamp:      now,
			AskOrderID:     askOrder.ID,
			BidOrderID:     bidOrder.ID,
			AskUser:        askOrder.UserID,
			BidUser:        bidOrder.UserID,
			TakerSide:      taker.Side,
			TakerFeeAmount: takerFeeAmount(taker, buyerFee, sellerFee, buyer),
			MakerFeeAmount: takerFeeAmount(maker, buyerFee, sellerFee, buyer),
		}
		e.sink.PutTrade(trade)
		trades = append(trades, trade)

		e.sink.PutOrder(taker, types.OrderUpdate)
		e.sink.PutOrder(maker, types.OrderUpdate)

		b.lastPrice = maker.Price
		b.tradeCount++

		if maker.Remain.IsZero() {
			b.remove(maker)
			if err := e.refundTaker(maker); err != nil {
				return trades, false, err
			}
			e.sink.PutOrder(maker, types.OrderFinish)
		}
	}

	if taker.Type == types.Limit && taker.Remain.IsZero() {
		if err := e.refundTaker(taker); err != nil {
			return trades, false, err
		}
	}
	return trades, false, nil
}

// takerFeeAmount picks whichever of buyerFee/sellerFee belongs to o,
// depending on whether o is the buyer or the seller in this fill.
func takerFeeAmount(o *Order, buyerFee, sellerFee money.Decimal, buyer *Order) money.Decimal {
	if o == buyer {
		return buyerFee
	}
	return sellerFee
}

// applyFill updates an order's running totals after one matched iteration.
func applyFill(o *Order, baseAmount, quoteAmount, feeAmount money.Decimal, now float64) {
	o.Remain = o.Remain.Sub(baseAmount)
	o.FinishedBase = o.FinishedBase.Add(baseAmount)
	o.FinishedQuote = o.FinishedQuote.Add(quoteAmount)
	o.FinishedFee = o.FinishedFee.Add(feeAmount)
	o.UpdateTime = now
}

// settle moves base from seller to buyer (net of buyerFee) and quote from
// buyer to seller (net of sellerFee). The fee portions are not credited to
// any account — no fee-account party is modeled at this layer (§9).
func (e *Engine) settle(cfg Config, seller, buyer uuid.UUID, baseSourcePartition, quoteSourcePartition types.Partition,
	baseAmount, quoteAmount, buyerFee, sellerFee money.Decimal) error {
	if err := e.ledger.Sub(seller, baseSourcePartition, cfg.Base, baseAmount); err != nil {
		return err
	}
	if err := e.ledger.Add(buyer, types.Available, cfg.Base, baseAmount.Sub(buyerFee)); err != nil {
		return err
	}
	if err := e.ledger.Sub(buyer, quoteSourcePartition, cfg.Quote, quoteAmount); err != nil {
		return err
	}
	if err := e.ledger.Add(seller, types.Available, cfg.Quote, quoteAmount.Sub(sellerFee)); err != nil {
		return err
	}
	return nil
}

// refundTaker unfreezes whatever an order still holds frozen — used when a
// taker is rejected (post-only crossing) before ever resting, and when a
// LIMIT order fully fills with a residual left over (a BID that filled
// below its own price).
func (e *Engine) refundTaker(taker *Order) error {
	if !taker.Frozen.IsSignPositive() {
		return nil
	}
	asset := frozenAsset(e.configs[taker.Market], taker.Side)
	if err := e.ledger.Unfreeze(taker.UserID, asset, taker.Frozen); err != nil {
		return err
	}
	taker.Frozen = money.Zero
	return nil
}

func minDecimal(a, b money.Decimal) money.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
