package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// CallbackSecretParam is the query parameter carrying the callback secret.
const CallbackSecretParam = "callback_secret"

const callbackSecretBytes = 20

// NewCallbackSecret returns a random 160-bit token, hex encoded.
func NewCallbackSecret() (string, error) {
	b := make([]byte, callbackSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NotifyURL is the webhook endpoint registered with the processor for gatewayID.
func NotifyURL(publicBaseURL, gatewayID, secret string) (string, error) {
	u, err := url.Parse(strings.TrimRight(publicBaseURL, "/") + "/webhooks/" + url.PathEscape(gatewayID))
	if err != nil {
		return "", fmt.Errorf("invalid public base URL: %w", err)
	}
	q := u.Query()
	q.Set(CallbackSecretParam, secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ReturnMarker is the query parameter tagging buyer traffic coming back from a processor.
func ReturnMarker(gatewayID string) string {
	return "return_from_" + gatewayID
}

// ReturnSignatureParam carries the signature binding a return URL to its gateway and order.
const ReturnSignatureParam = "sig"

// ReturnSignature is an HMAC-SHA256 over gateway id and order id keyed by the
// gateway's callback secret, hex encoded.
func ReturnSignature(secret, gatewayID, orderID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayID + "\n" + orderID))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidReturnSignature reports whether presented signs gatewayID and orderID
// under secret. An empty secret or signature never validates.
func ValidReturnSignature(secret, gatewayID, orderID, presented string) bool {
	if secret == "" || presented == "" {
		return false
	}
	expected := ReturnSignature(secret, gatewayID, orderID)
	return hmac.Equal([]byte(presented), []byte(expected))
}

// ReturnURL is the signed success URL handed to the processor for one order.
func ReturnURL(publicBaseURL, gatewayID, orderID, secret string) (string, error) {
	u, err := url.Parse(strings.TrimRight(publicBaseURL, "/") + "/payments/return/" + url.PathEscape(gatewayID))
	if err != nil {
		return "", fmt.Errorf("invalid public base URL: %w", err)
	}
	q := u.Query()
	q.Set(ReturnMarker(gatewayID), "1")
	q.Set("order_id", orderID)
	q.Set(ReturnSignatureParam, ReturnSignature(secret, gatewayID, orderID))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
