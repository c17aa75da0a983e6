package coinapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Request authentication headers. The processor expects them verbatim, so they
// are written without MIME canonicalization.
const (
	headerAccessKey       = "ACCESS_KEY"
	headerAccessSignature = "ACCESS_SIGNATURE"
	headerAccessNonce     = "ACCESS_NONCE"
)

// nonceSource hands out strictly increasing microsecond nonces.
type nonceSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (n *nonceSource) next() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.now().UnixMicro()
	if v <= n.last {
		v = n.last + 1
	}
	n.last = v
	return strconv.FormatInt(v, 10)
}

// signRequest attaches API-key authentication to req.
// The signature is HMAC-SHA256 of: <nonce><full url><body>
func signRequest(req *http.Request, apiKey, apiSecret, nonce string, body []byte) {
	message := nonce + req.URL.String() + string(body)
	req.Header[headerAccessKey] = []string{apiKey}
	req.Header[headerAccessSignature] = []string{calculateHMAC(message, apiSecret)}
	req.Header[headerAccessNonce] = []string{nonce}
}

// calculateHMAC computes HMAC-SHA256 of the message.
func calculateHMAC(message, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
