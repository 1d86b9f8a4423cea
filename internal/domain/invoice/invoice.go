package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/libops/sapinvoices/internal/domain/shared"
	"github.com/libops/sapinvoices/internal/domain/shared/valueobject"
)

// Status represents the lifecycle status of an invoice within a feed run.
// The source of truth for "ready to be paid" and "paid" lives in the ILS;
// the remaining statuses are run-local outcomes.
type Status string

const (
	StatusReadyToBePaid      Status = "READY_TO_BE_PAID"
	StatusIncluded           Status = "INCLUDED"
	StatusPaid               Status = "PAID"
	StatusFailedValidation   Status = "FAILED_VALIDATION"
	StatusFailedTransmission Status = "FAILED_TRANSMISSION"
)

// IsTerminal returns true if no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailedValidation || s == StatusFailedTransmission
}

// PurchaseType classifies an invoice by vendor class and is the batch key:
// monograph and serial invoices feed separate AP files.
type PurchaseType string

const (
	PurchaseTypeMonograph PurchaseType = "monograph"
	PurchaseTypeSerial    PurchaseType = "serial"
)

// PurchaseTypeForVendor derives the purchase type from a vendor code.
// Serial vendors carry a "-S" suffix by cataloguing convention.
func PurchaseTypeForVendor(vendorCode string) PurchaseType {
	if strings.HasSuffix(vendorCode, "-S") {
		return PurchaseTypeSerial
	}
	return PurchaseTypeMonograph
}

// SequenceKey returns the short form used in the persisted sequence parameter
func (p PurchaseType) SequenceKey() string {
	if p == PurchaseTypeSerial {
		return "ser"
	}
	return "mono"
}

// Address holds a vendor payment address
type Address struct {
	Lines         []string
	City          string
	StateProvince string
	PostalCode    string
	CountryCode   string
}

// Vendor holds the vendor data needed for the AP payee records
type Vendor struct {
	Code    string
	Name    string
	Address Address
}

// FundLine is a single fund distribution on an invoice. Lines sharing one
// external fund ID (cost object + G/L account) are merged by the aggregator
// before an invoice reaches the renderer.
type FundLine struct {
	FundCode   string
	CostObject string
	GLAccount  string
	Amount     valueobject.Money
}

// Invoice is the validated, strongly-typed form of an ILS invoice record.
// It is immutable once built except for its status, which only the
// transmission coordinator may advance.
type Invoice struct {
	ID            string
	Number        string
	Date          time.Time
	PaymentMethod string
	Total         valueobject.Money
	Vendor        *Vendor
	FundLines     []FundLine
	Type          PurchaseType

	status Status
}

// New creates an invoice in READY_TO_BE_PAID status
func New(id, number string, date time.Time, paymentMethod string, total valueobject.Money, vendorCode string) (*Invoice, error) {
	if id == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_ID", "Invoice ID cannot be empty")
	}
	if number == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if date.IsZero() {
		return nil, shared.NewDomainError("INVALID_INVOICE_DATE", "Invoice date is required")
	}
	return &Invoice{
		ID:            id,
		Number:        number,
		Date:          date,
		PaymentMethod: paymentMethod,
		Total:         total,
		Type:          PurchaseTypeForVendor(vendorCode),
		status:        StatusReadyToBePaid,
	}, nil
}

// Status returns the current run-local status
func (inv *Invoice) Status() Status {
	return inv.status
}

// ExternalReference builds the AP external reference number: the invoice
// number suffixed with the invoice date as YYMMDD.
func (inv *Invoice) ExternalReference() string {
	return inv.Number + inv.Date.Format("060102")
}

// MarkIncluded records that the invoice was selected into a transmission batch
func (inv *Invoice) MarkIncluded() error {
	if inv.status != StatusReadyToBePaid {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot include invoice in %s status", inv.status))
	}
	inv.status = StatusIncluded
	return nil
}

// MarkPaid records that the ILS accepted the mark-paid call for this invoice
func (inv *Invoice) MarkPaid() error {
	if inv.status != StatusIncluded {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark invoice paid in %s status", inv.status))
	}
	inv.status = StatusPaid
	return nil
}

// MarkFailedValidation routes the invoice out of the run before any batch is built
func (inv *Invoice) MarkFailedValidation() error {
	if inv.status != StatusReadyToBePaid {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail validation in %s status", inv.status))
	}
	inv.status = StatusFailedValidation
	return nil
}

// MarkFailedTransmission records that the invoice was delivered to AP but the
// ILS mark-paid call did not succeed. This is a source-of-truth drift that
// requires operator follow-up; it is never retried automatically.
func (inv *Invoice) MarkFailedTransmission() error {
	if inv.status != StatusIncluded {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail transmission in %s status", inv.status))
	}
	inv.status = StatusFailedTransmission
	return nil
}

// FundLineTotal returns the sum of all fund line amounts
func (inv *Invoice) FundLineTotal() valueobject.Money {
	total := valueobject.Zero(inv.Total.Currency())
	for _, line := range inv.FundLines {
		if sum, err := total.Add(line.Amount); err == nil {
			total = sum
		}
	}
	return total
}
