package invoice

import (
	"fmt"
	"unicode/utf8"
)

// ReasonCode identifies why an invoice failed validation
type ReasonCode string

const (
	ReasonFundSumMismatch      ReasonCode = "FUND_SUM_MISMATCH"
	ReasonMissingVendor        ReasonCode = "MISSING_VENDOR"
	ReasonVendorAddressMissing ReasonCode = "VENDOR_ADDRESS_MISSING"
	ReasonUnknownPaymentMethod ReasonCode = "UNKNOWN_PAYMENT_METHOD"
	ReasonMissingCurrency      ReasonCode = "MISSING_CURRENCY"
	ReasonNoFundLines          ReasonCode = "NO_FUND_LINES"
	ReasonNonPositiveFundLine  ReasonCode = "NON_POSITIVE_FUND_LINE"
	ReasonUnknownFundCode      ReasonCode = "UNKNOWN_FUND_CODE"
	ReasonMultibyteCharacter   ReasonCode = "MULTIBYTE_CHARACTER"
)

// Issue is a single validation finding on an invoice
type Issue struct {
	Reason ReasonCode
	Detail string
}

// Rejection pairs an invoice with the findings that excluded it from the run
type Rejection struct {
	Invoice *Invoice
	Issues  []Issue
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Reason, i.Detail)
}

// Validate applies all per-invoice validation rules and returns every finding.
// Rules are independent; a failing rule never masks another. An invoice with a
// non-empty result is excluded from every batch and never marked paid.
func (inv *Invoice) Validate(eligiblePaymentMethods map[string]bool) []Issue {
	var issues []Issue

	if inv.Vendor == nil || inv.Vendor.Code == "" {
		issues = append(issues, Issue{
			Reason: ReasonMissingVendor,
			Detail: fmt.Sprintf("no vendor record for invoice %s", inv.ID),
		})
	} else if len(inv.Vendor.Address.Lines) == 0 {
		issues = append(issues, Issue{
			Reason: ReasonVendorAddressMissing,
			Detail: fmt.Sprintf("no payment address for vendor %s", inv.Vendor.Code),
		})
	}

	if !eligiblePaymentMethods[inv.PaymentMethod] {
		issues = append(issues, Issue{
			Reason: ReasonUnknownPaymentMethod,
			Detail: fmt.Sprintf("payment method %q is not eligible for the AP feed", inv.PaymentMethod),
		})
	}

	if inv.Total.Currency() == "" {
		issues = append(issues, Issue{
			Reason: ReasonMissingCurrency,
			Detail: "invoice has no currency",
		})
	}

	if len(inv.FundLines) == 0 {
		issues = append(issues, Issue{
			Reason: ReasonNoFundLines,
			Detail: "invoice has no fund distribution lines",
		})
	} else {
		for _, line := range inv.FundLines {
			if !line.Amount.IsPositive() {
				issues = append(issues, Issue{
					Reason: ReasonNonPositiveFundLine,
					Detail: fmt.Sprintf("fund %s has non-positive amount %s", line.FundCode, line.Amount),
				})
			}
		}
		if !inv.FundLineTotal().EqualsWithinTolerance(inv.Total) {
			issues = append(issues, Issue{
				Reason: ReasonFundSumMismatch,
				Detail: fmt.Sprintf("fund lines sum to %s but invoice total is %s", inv.FundLineTotal(), inv.Total),
			})
		}
	}

	issues = append(issues, inv.multibyteIssues()...)

	return issues
}

// multibyteIssues scans every string that reaches the rendered file for
// characters wider than one byte in UTF-8. The AP system rejects them.
func (inv *Invoice) multibyteIssues() []Issue {
	type field struct {
		name  string
		value string
	}
	fields := []field{{"number", inv.Number}}
	if inv.Vendor != nil {
		fields = append(fields,
			field{"vendor.name", inv.Vendor.Name},
			field{"vendor.address.city", inv.Vendor.Address.City},
			field{"vendor.address.state_province", inv.Vendor.Address.StateProvince},
			field{"vendor.address.postal_code", inv.Vendor.Address.PostalCode},
		)
		for i, line := range inv.Vendor.Address.Lines {
			fields = append(fields, field{fmt.Sprintf("vendor.address.line%d", i+1), line})
		}
	}

	var issues []Issue
	for _, f := range fields {
		name, value := f.name, f.value
		for _, r := range value {
			if utf8.RuneLen(r) > 1 {
				issues = append(issues, Issue{
					Reason: ReasonMultibyteCharacter,
					Detail: fmt.Sprintf("field %s contains multibyte character %q", name, r),
				})
			}
		}
	}
	return issues
}
