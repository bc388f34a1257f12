package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// OrderIDPrefix is the fixed prefix of every order identifier.
const OrderIDPrefix = "ORD-"

// GenerateOrderID returns a fresh order identifier: the fixed prefix plus a
// unique token. Collisions are treated as negligible.
func GenerateOrderID() string {
	return OrderIDPrefix + uuid.NewString()
}

func GenerateInvoiceNumber() string {
	now := time.Now().UTC()

	datePart := now.Format("20060102-150405")
	millis := now.Nanosecond() / int(time.Millisecond)

	// 4-digit cryptographic random
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// fallback: time-based entropy
		n = big.NewInt(now.UnixNano() % 10000)
	}

	return fmt.Sprintf(
		"INV-%s-%03d-%04d",
		datePart,
		millis,
		n.Int64(),
	)
}
