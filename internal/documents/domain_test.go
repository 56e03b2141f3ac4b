package documents

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusPredicates(t *testing.T) {
	require.True(t, StatusDraft.CanEdit())
	require.True(t, StatusWaiting.CanEdit())
	require.True(t, StatusReady.CanEdit())
	require.False(t, StatusDone.CanEdit())

	require.True(t, StatusReady.CanDelete())
	require.False(t, StatusDone.CanDelete())

	require.False(t, Status("SHIPPED").IsValid())
}

func TestKindValidation(t *testing.T) {
	for _, kind := range []Kind{KindReceipt, KindDelivery, KindTransfer, KindAdjustment} {
		require.True(t, kind.IsValid())
		_, ok := kindSpecs[kind]
		require.True(t, ok)
	}
	require.False(t, Kind("invoice").IsValid())
}

func TestStockCheckShort(t *testing.T) {
	require.True(t, StockCheck{Available: 3, Required: 5}.Short())
	require.False(t, StockCheck{Available: 5, Required: 5}.Short())
}
