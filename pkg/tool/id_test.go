package tool

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateReference(t *testing.T) {
	ref := GenerateReference("ORD")
	pattern := fmt.Sprintf(`^ORD-%d-\d{6}$`, time.Now().Year())
	require.Regexp(t, regexp.MustCompile(pattern), ref)
}

func TestGenerateUUIDV7Ordered(t *testing.T) {
	a := GenerateUUIDV7()
	b := GenerateUUIDV7()
	require.NotEqual(t, a, b)
	require.Len(t, a, 36)
	// v7 IDs are time-ordered, which keeps index inserts append-only.
	require.Less(t, a, b)
}
