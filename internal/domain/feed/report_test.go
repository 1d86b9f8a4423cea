package feed

import (
	"strings"
	"testing"

	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRenderCoverSheets(t *testing.T) {
	inv := testInvoice(t, "1", "INV-1", "ACME", 150, 100, 50)
	out := RenderCoverSheets(testRunDate, "UNIVERSITY LIBRARIES", []*invoice.Invoice{inv})

	assert.Contains(t, out, "UNIVERSITY LIBRARIES")
	assert.Contains(t, out, "Vendor code   : ACME")
	assert.Contains(t, out, "Vendor:  Acme Scholarly Books")
	assert.Contains(t, out, "Cambridge, MA 02139")
	assert.Contains(t, out, "INV-1260810")
	assert.Contains(t, out, "Total/Currency:             150.00      USD")
	assert.Contains(t, out, "Payment Method:  ACCOUNTINGDEPARTMENT")
	assert.True(t, strings.HasSuffix(out, "\f"), "cover sheets end with a form feed")

	t.Run("one sheet per invoice", func(t *testing.T) {
		two := RenderCoverSheets(testRunDate, "UNIVERSITY LIBRARIES", []*invoice.Invoice{inv, inv})
		assert.Equal(t, 2, strings.Count(two, "\f"))
	})
}

func TestRenderSummary(t *testing.T) {
	invoices := []*invoice.Invoice{
		testInvoice(t, "1", "INV-1", "ACME", 1500.25, 1500.25),
		testInvoice(t, "2", "INV-2", "ACME", 499.75, 499.75),
	}

	t.Run("lists files totals and count", func(t *testing.T) {
		out := RenderSummary("UNIVERSITY LIBRARIES", "dlibsapg.042.20260824000000", "clibsapg.042.20260824000000", invoices, nil)
		assert.Contains(t, out, "Data file: dlibsapg.042.20260824000000")
		assert.Contains(t, out, "Control file: clibsapg.042.20260824000000")
		assert.Contains(t, out, "Total payment:       $2,000.00")
		assert.Contains(t, out, "Invoice count:       2")
		assert.NotContains(t, out, "Warning!")
	})

	t.Run("rejections render as warnings", func(t *testing.T) {
		bad := testInvoice(t, "3", "INV-3", "ACME", 10, 9)
		rejections := []invoice.Rejection{{
			Invoice: bad,
			Issues: []invoice.Issue{{
				Reason: invoice.ReasonFundSumMismatch,
				Detail: "fund lines sum to 9.00 USD but invoice total is 10.00 USD",
			}},
		}}
		out := RenderSummary("UNIVERSITY LIBRARIES", "d", "c", invoices, rejections)
		assert.Contains(t, out, "Warning! Invoice: 3")
		assert.Contains(t, out, "FUND_SUM_MISMATCH")
		assert.Contains(t, out, "Please fix the above before starting a final run")
	})
}

func TestCommaFormat(t *testing.T) {
	assert.Equal(t, "0.00", commaFormat(decimal.Zero))
	assert.Equal(t, "999.99", commaFormat(decimal.NewFromFloat(999.99)))
	assert.Equal(t, "1,000.00", commaFormat(decimal.NewFromInt(1000)))
	assert.Equal(t, "12,845,345.10", commaFormat(decimal.NewFromFloat(12845345.10)))
	assert.Equal(t, "-1,234.50", commaFormat(decimal.NewFromFloat(-1234.5)))
}
