package feed

import (
	"context"
	"time"

	"github.com/libops/sapinvoices/internal/domain/feed"
	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/libops/sapinvoices/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceRecord is the raw shape of an ILS invoice before validation.
// The gateway returns records in a stable order (vendor code, then invoice
// number); downstream components never re-sort.
type InvoiceRecord struct {
	ID            string
	Number        string
	Date          time.Time
	VendorCode    string
	PaymentMethod string
	Currency      string
	TotalAmount   decimal.Decimal
	Lines         []FundDistribution
}

// FundDistribution is one fund allocation on an ILS invoice line
type FundDistribution struct {
	FundCode string
	Amount   decimal.Decimal
}

// VendorRecord is the vendor data resolved by the gateway, with the payment
// address already selected and the country normalized to an AP country code.
type VendorRecord struct {
	Code    string
	Name    string
	Address invoice.Address
}

// FundRecord is a fund resolved by code. ExternalID encodes the AP cost
// object and G/L account as "<cost object>-<G/L account>".
type FundRecord struct {
	Code       string
	ExternalID string
}

// InvoiceGateway is the ILS collaborator: paginated reads of invoices ready
// to be paid, vendor and fund lookups, and the per-invoice mark-paid write.
// Implementations own authentication, timeouts, and bounded retry of
// transient failures.
type InvoiceGateway interface {
	ListReadyToBePaid(ctx context.Context) ([]InvoiceRecord, error)
	GetVendor(ctx context.Context, vendorCode string) (*VendorRecord, error)
	GetFund(ctx context.Context, fundCode string) (*FundRecord, error)
	MarkPaid(ctx context.Context, invoiceID string, paidAt time.Time, amount valueobject.Money) error
}

// FileDelivery hands a named file to the AP intake location. Retry of
// transient delivery failures is the implementation's responsibility.
type FileDelivery interface {
	Send(ctx context.Context, fileName string, content []byte) error
}

// SequenceStore is the persisted file-sequence collaborator, keyed by batch
// classification. CompareAndSwap must fail with shared.ErrSequenceConflict
// when the persisted value no longer equals old.
type SequenceStore interface {
	Current(ctx context.Context, key string) (int, error)
	CompareAndSwap(ctx context.Context, key string, old, next int) error
}

// Notifier delivers the run summary and cover sheets to staff. The recipient
// list is selected by run mode.
type Notifier interface {
	SendBatchReport(ctx context.Context, mode feed.Mode, key invoice.PurchaseType, runDate time.Time, summary, coverSheets string) error
}
