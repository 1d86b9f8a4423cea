package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// apControlConstant closes every control file; value supplied by Accounts Payable.
const apControlConstant = "00100100000000000000"

// RenderControlFile renders the fixed-width control file that accompanies a
// data file to the AP dropbox. Fields, in order: byte count of the data file,
// line count of the data file, credit total (always zero - credits are not
// sent), debit total, a repeat of the debit total as the third control sum,
// and the AP constant.
func RenderControlFile(dataFile []byte, invoiceTotal decimal.Decimal) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "%016d", len(dataFile))
	fmt.Fprintf(&b, "%016d", countLines(dataFile))
	b.WriteString(strings.Repeat("0", 20))
	b.WriteString(zeroPaddedCents(invoiceTotal, 20))
	b.WriteString(zeroPaddedCents(invoiceTotal, 20))
	b.WriteString(apControlConstant)
	b.WriteString("\n")

	return []byte(b.String())
}

// DataFileName builds the data file name for a sequence number and run date
func DataFileName(sequence int, runDate time.Time) string {
	return fmt.Sprintf("dlibsapg.%03d.%s000000", sequence, runDate.Format("20060102"))
}

// ControlFileName builds the control file name for a sequence number and run date
func ControlFileName(sequence int, runDate time.Time) string {
	return fmt.Sprintf("clibsapg.%03d.%s000000", sequence, runDate.Format("20060102"))
}

// zeroPaddedCents renders an amount in minor units, zero-padded to width,
// e.g. 1234.50 -> "...000123450".
func zeroPaddedCents(amount decimal.Decimal, width int) string {
	cents := strings.ReplaceAll(amount.StringFixed(2), ".", "")
	cents = strings.TrimPrefix(cents, "-")
	if len(cents) >= width {
		return cents
	}
	return strings.Repeat("0", width-len(cents)) + cents
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 0
	for _, c := range content {
		if c == '\n' {
			n++
		}
	}
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}
