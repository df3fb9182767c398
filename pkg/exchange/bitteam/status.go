package bitteam

import (
	"strings"

	"bitteam/internal/safe"
	"bitteam/pkg/core"
)

// parseOrderStatus maps a provider order status. Both accepted and rejected
// collapse to closed; callers needing the difference read Order.Info.
func parseOrderStatus(s string) core.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created", "executing":
		return core.StatusOpen
	case "cancelled":
		return core.StatusCanceled
	case "accepted", "rejected":
		return core.StatusClosed
	default:
		return core.StatusExpired
	}
}

// parseTransactionStatus maps a numeric provider transaction status.
// Codes without a canonical meaning are reported as unknown.
func parseTransactionStatus(v any) core.TransactionStatus {
	code, ok := safe.AsInt(v)
	if !ok {
		return core.TransactionStatusUnknown
	}
	switch code {
	case 1:
		return core.TransactionStatusOK
	case -1:
		return core.TransactionStatusFailed
	case 2, 3:
		return core.TransactionStatusPending
	default:
		return core.TransactionStatusUnknown
	}
}

func parseOrderType(s string) core.OrderType {
	if strings.EqualFold(s, "market") {
		return core.TypeMarket
	}
	return core.TypeLimit
}

func parseTransactionType(s string, fallback core.TransactionType) core.TransactionType {
	switch strings.ToLower(s) {
	case "deposit":
		return core.TransactionDeposit
	case "withdraw", "withdrawal":
		return core.TransactionWithdraw
	default:
		return fallback
	}
}

// parseSideFromBuyerMaker derives the taker side of a public trade.
func parseSideFromBuyerMaker(isBuyerMaker bool) core.OrderSide {
	if isBuyerMaker {
		return core.SideSell
	}
	return core.SideBuy
}
