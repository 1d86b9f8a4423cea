package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// RenderCoverSheets renders one printable cover sheet per invoice, separated
// by form feeds, for the approval paperwork that accompanies a feed run.
func RenderCoverSheets(runDate time.Time, orgName string, invoices []*invoice.Invoice) string {
	today := runDate.Format("01/02/2006")
	var b strings.Builder
	for _, inv := range invoices {
		fmt.Fprintf(&b, "\n\n%33s%s\n\n\n", "", orgName)
		fmt.Fprintf(&b, "Date: %-36sVendor code   : %s\n", today, inv.Vendor.Code)
		fmt.Fprintf(&b, "%57s\n\n", "Accounting ID :")
		fmt.Fprintf(&b, "Vendor:  %s\n", inv.Vendor.Name)
		for _, line := range inv.Vendor.Address.Lines {
			fmt.Fprintf(&b, "         %s\n", line)
		}
		b.WriteString("         ")
		if inv.Vendor.Address.City != "" {
			fmt.Fprintf(&b, "%s, ", inv.Vendor.Address.City)
		}
		if inv.Vendor.Address.StateProvince != "" {
			fmt.Fprintf(&b, "%s ", inv.Vendor.Address.StateProvince)
		}
		if inv.Vendor.Address.PostalCode != "" {
			b.WriteString(inv.Vendor.Address.PostalCode)
		}
		fmt.Fprintf(&b, "\n         %s\n\n", inv.Vendor.Address.CountryCode)
		b.WriteString("Invoice no.            Fiscal Account     Amount            Inv. Date\n")
		b.WriteString("------------------     -----------------  -------------     ----------\n")
		for _, line := range inv.FundLines {
			fmt.Fprintf(&b, "%-23s", inv.ExternalReference())
			fmt.Fprintf(&b, "%s %s     ", line.CostObject, line.GLAccount)
			fmt.Fprintf(&b, "%-18s", commaFormat(line.Amount.Amount()))
			fmt.Fprintf(&b, "%s\n", inv.Date.Format("01/02/2006"))
		}
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "Total/Currency:             %s      %s\n\n",
			commaFormat(inv.Total.Amount()), inv.Total.Currency())
		fmt.Fprintf(&b, "Payment Method:  %s\n\n\n", inv.PaymentMethod)
		fmt.Fprintf(&b, "%44s %s\n\n", "Departmental Approval", strings.Repeat("_", 34))
		fmt.Fprintf(&b, "%50s %s\n\n\n", "Financial Services Approval", strings.Repeat("_", 28))
		b.WriteString("\f")
	}
	return b.String()
}

// RenderSummary renders the human-readable run summary that is emailed to
// staff: the file names, any validation warnings that must be fixed before a
// final run, and the payment totals for the invoices in the feed.
func RenderSummary(orgName, dataFileName, controlFileName string, invoices []*invoice.Invoice, rejected []invoice.Rejection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s --- Alma to SAP Invoice Feed\n\n\n\n", orgName)
	fmt.Fprintf(&b, "Data file: %s\n\n", dataFileName)
	fmt.Fprintf(&b, "Control file: %s\n\n\n\n", controlFileName)

	if len(rejected) > 0 {
		b.WriteString(renderRejectionWarnings(rejected))
	}

	total := decimal.Zero
	for _, inv := range invoices {
		fmt.Fprintf(&b, "%-39.39s", inv.Vendor.Name)
		fmt.Fprintf(&b, "%-20.20s", inv.ExternalReference())
		fmt.Fprintf(&b, "%s\n", inv.Total.Amount().StringFixed(2))
		total = total.Add(inv.Total.Amount())
	}
	fmt.Fprintf(&b, "\nTotal payment:       $%s\n\n", commaFormat(total))
	fmt.Fprintf(&b, "Invoice count:       %d\n\n\n", len(invoices))
	fmt.Fprintf(&b, "Authorized signature %s\n\n\n", strings.Repeat("_", 38))
	return b.String()
}

func renderRejectionWarnings(rejected []invoice.Rejection) string {
	var b strings.Builder
	for _, rej := range rejected {
		fmt.Fprintf(&b, "Warning! Invoice: %s\n", rej.Invoice.ID)
		for _, issue := range rej.Issues {
			fmt.Fprintf(&b, "%s\n\n", issue)
		}
	}
	b.WriteString("Please fix the above before starting a final run\n\n")
	return b.String()
}

// commaFormat renders a decimal with two places and thousands separators
func commaFormat(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, fracPart, _ := strings.Cut(s, ".")
	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)
	out := strings.Join(groups, ",") + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
