package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateTicketCode builds a ticket redemption code from the order id, a
// high-resolution timestamp, and random bytes. Globally unique without a
// sequence counter, and not guessable from public order data.
func GenerateTicketCode(orderID string) string {
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// Timestamp alone still guarantees uniqueness per order.
		return fmt.Sprintf("TKT-%s-%d", orderID, time.Now().UnixNano())
	}
	return fmt.Sprintf("TKT-%s-%d-%s", orderID, time.Now().UnixNano(), hex.EncodeToString(random))
}

// GenerateReceiptID builds a short human-readable receipt reference.
func GenerateReceiptID(prefix string) string {
	random := make([]byte, 3)
	_, _ = rand.Read(random)
	return fmt.Sprintf("%s%d%s", prefix, time.Now().Unix(), hex.EncodeToString(random))
}
