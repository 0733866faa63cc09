package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentSignature computes the hex HMAC-SHA256 the gateway signs payments
// with: the HMAC over "orderRef|paymentRef" keyed by the shared secret.
// Binding both references means a valid signature for one order cannot be
// replayed against another.
func PaymentSignature(gatewayOrderRef, gatewayPaymentRef, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderRef + "|" + gatewayPaymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature recomputes the expected signature and compares in
// constant time.
func VerifyPaymentSignature(gatewayOrderRef, gatewayPaymentRef, signature, secret string) bool {
	expected := PaymentSignature(gatewayOrderRef, gatewayPaymentRef, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
