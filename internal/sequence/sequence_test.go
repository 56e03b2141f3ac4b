package sequence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "ADJ/2024/0001", Format("ADJ", 2024, 1))
	require.Equal(t, "WH01/IN/2024/0007", Format("WH01/IN", 2024, 7))
	require.Equal(t, "TRANS/2025/0042", Format("TRANS", 2025, 42))
}

func TestFormatWideCounter(t *testing.T) {
	// Counters beyond 9999 keep growing instead of wrapping.
	require.Equal(t, "WH01/OUT/2024/12345", Format("WH01/OUT", 2024, 12345))
}
