package feed

import (
	"fmt"

	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/libops/sapinvoices/internal/domain/shared"
	"github.com/libops/sapinvoices/internal/domain/shared/valueobject"
)

// Mode selects the run behaviour: review renders and reports only, final
// produces the transmittable feed.
type Mode string

const (
	ModeReview Mode = "review"
	ModeFinal  Mode = "final"
)

// Flag returns the single-character mode marker embedded in the header record
func (m Mode) Flag() string {
	if m == ModeFinal {
		return "F"
	}
	return "R"
}

// BatchState tracks a transmission batch through the two-phase protocol
type BatchState string

const (
	BatchCollected       BatchState = "COLLECTED"
	BatchFormatted       BatchState = "FORMATTED"
	BatchDelivered       BatchState = "DELIVERED"
	BatchReconciled      BatchState = "RECONCILED"
	BatchDeliverFailed   BatchState = "DELIVER_FAILED"
	BatchReconcileFailed BatchState = "RECONCILE_FAILED"
)

// IsTerminal returns true for end states of the batch state machine
func (s BatchState) IsTerminal() bool {
	switch s {
	case BatchReconciled, BatchDeliverFailed, BatchReconcileFailed:
		return true
	}
	return false
}

// Succeeded returns true only for the fully reconciled terminal state
func (s BatchState) Succeeded() bool {
	return s == BatchReconciled
}

// TransmissionBatch is the set of invoices selected for one output file.
// An invoice belongs to exactly one batch per run; ordering follows the
// gateway's stable retrieval order and is never re-sorted here.
type TransmissionBatch struct {
	Key      invoice.PurchaseType
	Invoices []*invoice.Invoice
	Sequence int

	state BatchState
}

// NewTransmissionBatch creates a batch in COLLECTED state
func NewTransmissionBatch(key invoice.PurchaseType, invoices []*invoice.Invoice) *TransmissionBatch {
	return &TransmissionBatch{
		Key:      key,
		Invoices: invoices,
		state:    BatchCollected,
	}
}

// State returns the current batch state
func (b *TransmissionBatch) State() BatchState {
	return b.state
}

// IsEmpty returns true when there is nothing to send for this batch key
func (b *TransmissionBatch) IsEmpty() bool {
	return len(b.Invoices) == 0
}

// MarkFormatted records that the output file was rendered with the given
// sequence number embedded in its header.
func (b *TransmissionBatch) MarkFormatted(sequence int) error {
	if b.state != BatchCollected {
		return b.invalidTransition("format")
	}
	b.Sequence = sequence
	b.state = BatchFormatted
	return nil
}

// MarkDelivered records a confirmed hand-off to the delivery collaborator
func (b *TransmissionBatch) MarkDelivered() error {
	if b.state != BatchFormatted {
		return b.invalidTransition("deliver")
	}
	b.state = BatchDelivered
	return nil
}

// MarkDeliverFailed is a terminal failure with no side effects on source data
func (b *TransmissionBatch) MarkDeliverFailed() error {
	if b.state != BatchFormatted {
		return b.invalidTransition("fail delivery of")
	}
	b.state = BatchDeliverFailed
	return nil
}

// MarkReconciled is the terminal success state: every invoice outcome is known
func (b *TransmissionBatch) MarkReconciled() error {
	if b.state != BatchDelivered {
		return b.invalidTransition("reconcile")
	}
	b.state = BatchReconciled
	return nil
}

// MarkReconcileFailed records that the file was sent but at least one
// source-of-truth update could not be confirmed. Requires manual follow-up.
func (b *TransmissionBatch) MarkReconcileFailed() error {
	if b.state != BatchDelivered {
		return b.invalidTransition("fail reconciliation of")
	}
	b.state = BatchReconcileFailed
	return nil
}

func (b *TransmissionBatch) invalidTransition(action string) error {
	return shared.NewDomainError("INVALID_STATE",
		fmt.Sprintf("Cannot %s %s batch in %s state", action, b.Key, b.state))
}

// TotalAmount sums the invoice totals in the batch
func (b *TransmissionBatch) TotalAmount() valueobject.Money {
	total := valueobject.Zero(valueobject.DefaultCurrency)
	if len(b.Invoices) > 0 {
		total = valueobject.Zero(b.Invoices[0].Total.Currency())
	}
	for _, inv := range b.Invoices {
		if sum, err := total.Add(inv.Total); err == nil {
			total = sum
		}
	}
	return total
}
