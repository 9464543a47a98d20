package tool

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateReference builds a human-readable payable reference such as
// DON-2025-123456. The prefix identifies the payable kind; uniqueness is
// enforced by the database index on the reference column.
func GenerateReference(prefix string) string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%s-%d-%06d", prefix, time.Now().Year(), time.Now().UnixNano()%1000000)
	}
	n := binary.BigEndian.Uint32(b[:]) % 1000000
	return fmt.Sprintf("%s-%d-%06d", prefix, time.Now().Year(), n)
}
