package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/sokoyetu/paydesk/internal/app/service/payable"
	"github.com/sokoyetu/paydesk/pkg/types"
)

// ReconcileRecurring settles one billing cycle of a monthly donation. The
// gateway echoes the original merchant reference with a fresh tracking id,
// so lookup is by reference, and the terminal-success short circuit does
// NOT apply: a paid donation still receives new cycles.
func (e *Engine) ReconcileRecurring(ctx context.Context, trackingID, merchantReference string) (*Outcome, error) {
	donation, err := e.store.GetDonationByRef(ctx, merchantReference)
	if err != nil {
		return nil, err
	}
	if !donation.Monthly() {
		return nil, fmt.Errorf("donation %s is not recurring: %w", donation.Reference, ErrInvariantViolation)
	}

	status, err := e.gw.GetTransactionStatus(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	if !status.Paid() {
		// A failed cycle is an audit fact, not a state change: the donation
		// keeps its status and the gateway retries billing.
		e.log.Infow("recurring_cycle_failed",
			"reference", donation.Reference, "tracking_id", trackingID,
			"gateway_status", status.StatusDescription)
		return &Outcome{Kind: types.PayableKindDonation, Reference: donation.Reference, Status: donation.PaymentStatus}, nil
	}

	for attempt := 0; ; attempt++ {
		donation.PaymentStatus = types.PaymentStatusPaid
		donation.ConfirmationCode = status.ConfirmationCode
		donation.PaidAt = paidAt(status)

		entry := ledgerEntry(donation, status, trackingID, donation.TotalDonations == 0)
		err = e.store.AppendLedgerEntry(ctx, donation, entry)
		if errors.Is(err, payable.ErrConflict) && attempt < conflictRetries {
			e.log.Warnw("payment_reconcile_conflict_retry",
				"kind", types.PayableKindDonation, "reference", donation.Reference, "attempt", attempt+1)
			donation, err = e.store.GetDonationByRef(ctx, merchantReference)
			if err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		e.log.Infow("recurring_cycle_recorded",
			"reference", donation.Reference, "tracking_id", trackingID,
			"amount", entry.Amount, "total_donations", donation.TotalDonations)

		e.notifier.DonationPaid(ctx, donation)
		return &Outcome{Kind: types.PayableKindDonation, Reference: donation.Reference, Status: types.PaymentStatusPaid, Changed: true}, nil
	}
}
