package bitteam

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"bitteam/pkg/core"
)

// Authentication headers expected by the private API.
const (
	HeaderAPIKey    = "X-BT-APIKEY"
	HeaderNonce     = "X-BT-NONCE"
	HeaderSignature = "X-BT-SIGNATURE"
)

// Signed bodies are serialized with sorted keys so the bytes that are signed are
// the bytes that are sent.
var canonicalJSON = sonic.Config{SortMapKeys: true}.Froze()

// NonceSource hands out strictly increasing nonces derived from a millisecond
// clock. Two calls in the same millisecond still get distinct values. It is safe
// for concurrent use.
type NonceSource struct {
	clock func() time.Time
	last  atomic.Int64
}

// NewNonceSource creates a NonceSource reading clock; nil means time.Now.
func NewNonceSource(clock func() time.Time) *NonceSource {
	if clock == nil {
		clock = time.Now
	}
	return &NonceSource{clock: clock}
}

// Next returns max(clock in ms, previous+1).
func (n *NonceSource) Next() int64 {
	for {
		now := n.clock().UnixMilli()
		last := n.last.Load()
		next := max(now, last+1)
		if n.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Signer stamps private requests with credentials, a nonce and a signature.
type Signer struct {
	nonces *NonceSource
}

// NewSigner creates a Signer drawing nonces from nonces.
func NewSigner(nonces *NonceSource) *Signer {
	return &Signer{nonces: nonces}
}

// Sign serializes req.Body into req.Payload (nothing for GET) and sets the
// authentication headers. The signed message is nonce + "/" + path + body, where
// path includes the query string.
func (s *Signer) Sign(req *core.Request, creds core.Credentials) error {
	if !creds.Valid() {
		return core.AuthenticationRequired(exchangeName)
	}

	body, err := serializeBody(req)
	if err != nil {
		return err
	}
	req.Payload = body

	nonce := strconv.FormatInt(s.nonces.Next(), 10)
	message := nonce + "/" + req.PathWithQuery() + string(body)

	req.SetHeader(HeaderAPIKey, creds.APIKey)
	req.SetHeader(HeaderNonce, nonce)
	req.SetHeader(HeaderSignature, signHMAC(message, creds.SecretKey))
	return nil
}

func serializeBody(req *core.Request) ([]byte, error) {
	if req.Method == http.MethodGet || len(req.Body) == 0 {
		return nil, nil
	}
	body, err := canonicalJSON.Marshal(map[string]any(req.Body))
	if err != nil {
		return nil, fmt.Errorf("serialize body: %w", err)
	}
	return body, nil
}

func signHMAC(message, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
