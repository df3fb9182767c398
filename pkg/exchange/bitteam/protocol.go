package bitteam

import (
	"context"
	"fmt"
	"net/http"

	"bitteam/pkg/core"
)

const exchangeName = "bitteam"

const (
	ProductionURL = "https://bit.team"
	HistoryURL    = "https://history.bit.team"
)

type endpoint struct {
	method  string
	path    string
	private bool
	// field is the key under result holding the payload; empty means result itself.
	field string
}

var endpoints = map[core.Operation]endpoint{
	core.OpFetchCurrencies:     {http.MethodGet, "trade/api/currencies", false, "currencies"},
	core.OpFetchMarkets:        {http.MethodGet, "trade/api/pairs", false, "pairs"},
	core.OpFetchTicker:         {http.MethodGet, "trade/api/pair/{name}", false, "pair"},
	core.OpFetchOrderBook:      {http.MethodGet, "trade/api/pair/{name}", false, "pair"},
	core.OpFetchOHLCV:          {http.MethodGet, "api/tw/history/{pairName}/{resolution}", false, "data"},
	core.OpFetchTrades:         {http.MethodGet, "trade/api/trades", false, "trades"},
	core.OpFetchOrder:          {http.MethodGet, "trade/api/ccxt/order/{id}", true, ""},
	core.OpFetchOrders:         {http.MethodGet, "trade/api/ccxt/ordersOfUser", true, "orders"},
	core.OpFetchMyTrades:       {http.MethodGet, "trade/api/ccxt/tradesOfUser", true, "trades"},
	core.OpFetchDepositAddress: {http.MethodGet, "trade/api/ccxt/address/{symbol}", true, ""},
	core.OpFetchTransactions:   {http.MethodGet, "trade/api/transactionsOfUser", true, "transactions"},
	core.OpFetchBalance:        {http.MethodGet, "trade/api/ccxt/balance", true, "balances"},
	core.OpCreateOrder:         {http.MethodPost, "trade/api/ccxt/ordercreate", true, ""},
	core.OpCancelOrder:         {http.MethodPost, "trade/api/ccxt/cancel-order", true, ""},
}

// Protocol implements core.Protocol for BitTeam. ParseResponse returns the
// unwrapped payload; the facade normalizes it, since most records need the
// market or currency they belong to.
type Protocol struct {
	signer *Signer
}

// NewProtocol creates a Protocol signing with nonces from nonces.
func NewProtocol(nonces *NonceSource) *Protocol {
	if nonces == nil {
		nonces = NewNonceSource(nil)
	}
	return &Protocol{signer: NewSigner(nonces)}
}

func (p *Protocol) Name() string {
	return exchangeName
}

func (p *Protocol) Version() string {
	return "1"
}

func (p *Protocol) BaseURL() string {
	return ProductionURL
}

// SupportedOperations returns the operations BuildRequest accepts.
func (p *Protocol) SupportedOperations() []core.Operation {
	ops := make([]core.Operation, 0, len(endpoints))
	for op := core.OpFetchCurrencies; op <= core.OpCancelOrder; op++ {
		if _, ok := endpoints[op]; ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// BuildRequest fills the endpoint path template from params. Params not consumed
// by the path go to the query string for GET and to the JSON body otherwise.
func (p *Protocol) BuildRequest(_ context.Context, op core.Operation, params core.Params) (*core.Request, error) {
	ep, ok := endpoints[op]
	if !ok {
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}

	if op == core.OpCreateOrder {
		if err := validateOrderParams(params); err != nil {
			return nil, err
		}
	}

	path, rest, err := core.ExpandPath(ep.path, params)
	if err != nil {
		return nil, core.NewExchangeError(exchangeName, core.ErrorTypeBadRequest, 0, err.Error()).
			WithCode(core.ErrCodeBadRequest)
	}

	req := core.NewRequest(ep.method, path)
	req.Op = op
	req.SetRequireAuth(ep.private)

	if ep.method == http.MethodGet {
		req.SetQueryParams(rest)
	} else {
		for k, v := range rest {
			req.SetBodyParam(k, v)
		}
		body, err := serializeBody(req)
		if err != nil {
			return nil, err
		}
		req.Payload = body
	}

	return req, nil
}

// SignRequest stamps a private request with credentials and a signature.
func (p *Protocol) SignRequest(req *core.Request, creds core.Credentials) error {
	return p.signer.Sign(req, creds)
}

// ParseResponse decodes the envelope, maps provider failures to typed errors and
// returns the operation's payload: []any for lists, map[string]any for records.
func (p *Protocol) ParseResponse(op core.Operation, resp *core.Response) (any, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil response")
	}
	ep, ok := endpoints[op]
	if !ok {
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}

	if len(resp.Body) == 0 {
		if resp.IsError() {
			return nil, core.NewExchangeError(exchangeName, core.ErrorTypeFromStatus(resp.StatusCode, ep.private),
				resp.StatusCode, fmt.Sprintf("HTTP error: %d", resp.StatusCode))
		}
		return nil, core.MalformedResponse(exchangeName, "empty response body")
	}

	raw, err := decodeBody(resp.Body)
	if err != nil {
		if resp.IsError() {
			return nil, core.NewExchangeError(exchangeName, core.ErrorTypeFromStatus(resp.StatusCode, ep.private),
				resp.StatusCode, fmt.Sprintf("HTTP error: %d", resp.StatusCode))
		}
		return nil, err
	}

	if err := envelopeError(raw, resp.StatusCode, ep.private); err != nil {
		return nil, err
	}

	return Unwrap(raw, ep.field)
}

func validateOrderParams(params core.Params) error {
	for _, key := range []string{"pairId", "side", "type", "amount"} {
		if v, ok := params[key]; !ok || v == nil || core.FormatParam(v) == "" {
			return core.NewExchangeError(exchangeName, core.ErrorTypeInvalidOrder, 0,
				fmt.Sprintf("missing required parameter: %s", key)).
				WithCode(core.ErrCodeInvalidOrder)
		}
	}
	if params["type"] == "limit" {
		if v, ok := params["price"]; !ok || v == nil {
			return core.NewExchangeError(exchangeName, core.ErrorTypeInvalidOrder, 0, "limit order requires a price").
				WithCode(core.ErrCodeInvalidOrder)
		}
	}
	return nil
}
