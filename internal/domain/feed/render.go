package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/libops/sapinvoices/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Record type markers in the AP data file. One H header opens the file, each
// invoice contributes a B payee record, fund distributions follow as C records
// with the last one per invoice marked D, and a T trailer closes the file.
const (
	recHeader      = "H"
	recPayee       = "B"
	recFund        = "C"
	recFundLast    = "D"
	recTrailer     = "T"
	amountWidth    = 16
	fundAmountCol  = 23 // 1 marker + 10 G/L account + 12 cost object
	detailCountLen = 6
)

// DataFile is a rendered AP feed file plus the totals needed for the control
// file and the reconciliation report.
type DataFile struct {
	Content      []byte
	DetailCount  int
	ControlTotal decimal.Decimal
}

// RenderDataFile renders validated invoices into the AP fixed-format file.
// The control total in the trailer is accumulated from the rendered amount
// fields, not the source decimals, so the trailer always equals what a
// downstream parser would sum from the detail records.
func RenderDataFile(runDate time.Time, batchKey invoice.PurchaseType, sequence int, mode Mode, invoices []*invoice.Invoice) (*DataFile, error) {
	if len(invoices) == 0 {
		return nil, shared.NewDomainError("EMPTY_BATCH", "Cannot render a data file with no invoices")
	}

	var buf bytes.Buffer
	dateString := runDate.Format("20060102")

	buf.WriteString(recHeader)
	buf.WriteString(dateString)
	fmt.Fprintf(&buf, "%06d", sequence)
	buf.WriteString(mode.Flag())
	buf.WriteString(padRight(string(batchKey), 10))
	buf.WriteString("\n")

	detailCount := 0
	controlTotal := decimal.Zero
	for _, inv := range invoices {
		if inv.Vendor == nil {
			return nil, shared.NewDomainError("MISSING_VENDOR",
				fmt.Sprintf("Invoice %s reached the renderer without vendor data", inv.ID))
		}
		payeeNameLine2, streetOrPOBox, payeeNameLine3 := foldAddressLines(inv.Vendor.Address.Lines)

		buf.WriteString(recPayee)
		// document date and baseline date are both the run date
		buf.WriteString(dateString)
		buf.WriteString(dateString)
		buf.WriteString(padRight(inv.ExternalReference(), 16))
		buf.WriteString("X000")
		buf.WriteString("400000")
		buf.WriteString(amountField(inv.Total.Amount()))
		buf.WriteString(" ")    // sign, always positive - credits are not sent
		buf.WriteString(" ")    // payment method
		buf.WriteString("  ")   // payment method supplement
		buf.WriteString("    ") // payment terms
		buf.WriteString(" ")    // payment block
		buf.WriteString("X")    // individual payee in document
		buf.WriteString(padRight(inv.Vendor.Name, 35))
		buf.WriteString(padRight(inv.Vendor.Address.City, 35))
		buf.WriteString(padRight(payeeNameLine2, 35))
		buf.WriteString(" ") // PO box indicator, all addresses treated as street addresses
		buf.WriteString(padRight(streetOrPOBox, 35))
		buf.WriteString(padRight(inv.Vendor.Address.PostalCode, 10))
		buf.WriteString(padRight(inv.Vendor.Address.StateProvince, 3))
		buf.WriteString(padRight(inv.Vendor.Address.CountryCode, 3))
		buf.WriteString(strings.Repeat(" ", 50)) // text
		buf.WriteString(padRight(payeeNameLine3, 35))
		buf.WriteString("\n")

		for i, line := range inv.FundLines {
			marker := recFund
			if i == len(inv.FundLines)-1 {
				marker = recFundLast
			}
			rendered := amountField(line.Amount.Amount())
			parsed, err := decimal.NewFromString(strings.TrimSpace(rendered))
			if err != nil {
				return nil, fmt.Errorf("re-parsing rendered amount %q: %w", rendered, err)
			}
			buf.WriteString(marker)
			buf.WriteString(padRight(line.GLAccount, 10))
			buf.WriteString(padRight(line.CostObject, 12))
			buf.WriteString(rendered)
			buf.WriteString(" ") // sign, always positive
			buf.WriteString("\n")

			detailCount++
			controlTotal = controlTotal.Add(parsed)
		}
	}

	buf.WriteString(recTrailer)
	fmt.Fprintf(&buf, "%0*d", detailCountLen, detailCount)
	buf.WriteString(amountField(controlTotal))
	buf.WriteString("\n")

	return &DataFile{
		Content:      buf.Bytes(),
		DetailCount:  detailCount,
		ControlTotal: controlTotal,
	}, nil
}

// SumDetailAmounts re-parses a rendered data file and sums the amount fields
// of the fund detail records. Returns the sum and the detail record count.
func SumDetailAmounts(content []byte) (decimal.Decimal, int, error) {
	sum := decimal.Zero
	count := 0
	for _, line := range strings.Split(string(content), "\n") {
		if line == "" || (line[:1] != recFund && line[:1] != recFundLast) {
			continue
		}
		if len(line) < fundAmountCol+amountWidth {
			return decimal.Zero, 0, fmt.Errorf("detail record too short: %q", line)
		}
		field := strings.TrimSpace(line[fundAmountCol : fundAmountCol+amountWidth])
		amount, err := decimal.NewFromString(field)
		if err != nil {
			return decimal.Zero, 0, fmt.Errorf("parsing detail amount %q: %w", field, err)
		}
		sum = sum.Add(amount)
		count++
	}
	return sum, count, nil
}

// ParseTrailer extracts the detail count and control total from the trailer record
func ParseTrailer(content []byte) (int, decimal.Decimal, error) {
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) == 0 {
		return 0, decimal.Zero, fmt.Errorf("empty data file")
	}
	trailer := lines[len(lines)-1]
	if !strings.HasPrefix(trailer, recTrailer) || len(trailer) < 1+detailCountLen+amountWidth {
		return 0, decimal.Zero, fmt.Errorf("malformed trailer record: %q", trailer)
	}
	var count int
	if _, err := fmt.Sscanf(trailer[1:1+detailCountLen], "%d", &count); err != nil {
		return 0, decimal.Zero, fmt.Errorf("parsing trailer count: %w", err)
	}
	total, err := decimal.NewFromString(strings.TrimSpace(trailer[1+detailCountLen : 1+detailCountLen+amountWidth]))
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("parsing trailer total: %w", err)
	}
	return count, total, nil
}

// foldAddressLines assigns vendor address lines to the AP payee fields.
// The first line is the second payee name line, the second the street or PO
// box, the third a further payee name line. Missing lines render as blanks.
func foldAddressLines(lines []string) (payeeNameLine2, streetOrPOBox, payeeNameLine3 string) {
	if len(lines) > 0 {
		payeeNameLine2 = lines[0]
	}
	if len(lines) > 1 {
		streetOrPOBox = lines[1]
	}
	if len(lines) > 2 {
		payeeNameLine3 = lines[2]
	}
	return payeeNameLine2, streetOrPOBox, payeeNameLine3
}

// padRight truncates s to width and pads it with trailing spaces
func padRight(s string, width int) string {
	if len(s) > width {
		s = s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// amountField renders an amount right-aligned in a 16-character field with
// two decimal places, the AP numeric convention.
func amountField(d decimal.Decimal) string {
	return fmt.Sprintf("%*s", amountWidth, d.StringFixed(2))
}
