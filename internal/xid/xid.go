package xid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const shopCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func New() string {
	return uuid.NewString()
}

// BillNumber is a display identifier, not a sequence. Two bills in the same
// millisecond can collide.
func BillNumber(at time.Time) string {
	return fmt.Sprintf("BILL-%d-%d", at.UnixMilli(), randomInt(1000))
}

// ShopCode returns 5 characters from A-Z0-9.
func ShopCode() string {
	buf := make([]byte, 5)
	for i := range buf {
		buf[i] = shopCodeAlphabet[randomInt(len(shopCodeAlphabet))]
	}
	return string(buf)
}

// EmployeeID returns EMP followed by 6 digits, the first never 0.
func EmployeeID() string {
	return fmt.Sprintf("EMP%d", 100000+randomInt(900000))
}

func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return int(time.Now().UnixNano() % int64(n))
	}
	return int(v.Int64())
}
