package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionPayment(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		ok       bool
	}{
		{PaymentStatusNotInitiated, PaymentStatusPending, true},
		{PaymentStatusNotInitiated, PaymentStatusPaid, false},
		{PaymentStatusPending, PaymentStatusPaid, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusRefunded, false},
		{PaymentStatusFailed, PaymentStatusPending, true},
		// A late settlement may land after a failed verdict.
		{PaymentStatusFailed, PaymentStatusPaid, true},
		{PaymentStatusPaid, PaymentStatusRefunded, true},
		{PaymentStatusPaid, PaymentStatusPending, false},
		{PaymentStatusPaid, PaymentStatusFailed, false},
		{PaymentStatusRefunded, PaymentStatusPaid, false},
		{PaymentStatusRefunded, PaymentStatusPending, false},
		// Same-state is a no-op, not a transition.
		{PaymentStatusPending, PaymentStatusPending, false},
		{PaymentStatusPaid, PaymentStatusPaid, false},
	}

	for _, c := range cases {
		require.Equal(t, c.ok, CanTransitionPayment(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminalSuccess(t *testing.T) {
	require.True(t, PaymentStatusPaid.TerminalSuccess())
	require.True(t, PaymentStatusRefunded.TerminalSuccess())
	require.False(t, PaymentStatusPending.TerminalSuccess())
	require.False(t, PaymentStatusFailed.TerminalSuccess())
	require.False(t, PaymentStatusNotInitiated.TerminalSuccess())
}

func TestViaGateway(t *testing.T) {
	require.True(t, PaymentMethodGateway.ViaGateway())
	require.False(t, PaymentMethodCashOnDelivery.ViaGateway())
	require.False(t, PaymentMethodBankTransfer.ViaGateway())
}

func TestCancelled(t *testing.T) {
	require.True(t, OrderStatusCancelledByUser.Cancelled())
	require.True(t, OrderStatusCancelledByAdmin.Cancelled())
	require.False(t, OrderStatusConfirmed.Cancelled())
	require.False(t, OrderStatusPendingPayment.Cancelled())
}
