package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/libops/sapinvoices/internal/domain/shared"
	"github.com/libops/sapinvoices/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// GroupedInvoices is the aggregator output: validated invoices partitioned by
// batch key in retrieval order, plus every rejected invoice with its reasons.
type GroupedInvoices struct {
	Batches  map[invoice.PurchaseType][]*invoice.Invoice
	Rejected []invoice.Rejection
}

// TotalInvoices returns the count of validated and rejected invoices combined
func (g *GroupedInvoices) TotalInvoices() int {
	n := len(g.Rejected)
	for _, batch := range g.Batches {
		n += len(batch)
	}
	return n
}

// Aggregator retrieves candidate invoices from the ILS, resolves their vendor
// and fund data, validates each invoice independently, and groups the valid
// ones into transmission batches by purchase type.
type Aggregator struct {
	gateway                InvoiceGateway
	eligiblePaymentMethods map[string]bool
	logger                 *zap.Logger
}

// NewAggregator creates an aggregator. eligiblePaymentMethods lists the
// payment methods the AP feed accepts; invoices with any other method fail
// validation.
func NewAggregator(gateway InvoiceGateway, eligiblePaymentMethods []string, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	eligible := make(map[string]bool, len(eligiblePaymentMethods))
	for _, m := range eligiblePaymentMethods {
		eligible[m] = true
	}
	return &Aggregator{
		gateway:                gateway,
		eligiblePaymentMethods: eligible,
		logger:                 logger,
	}
}

// FetchAndGroup runs the full aggregation phase. One invoice's validation
// failure never blocks another; a transport failure resolving reference data
// aborts the phase since every batch depends on it.
func (a *Aggregator) FetchAndGroup(ctx context.Context) (*GroupedInvoices, error) {
	records, err := a.gateway.ListReadyToBePaid(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing invoices ready to be paid: %w", err)
	}
	a.logger.Info("retrieved invoices from ILS", zap.Int("count", len(records)))

	grouped := &GroupedInvoices{
		Batches: make(map[invoice.PurchaseType][]*invoice.Invoice),
	}
	vendors := make(map[string]*VendorRecord)
	funds := make(map[string]*FundRecord)

	for i, record := range records {
		a.logger.Info("extracting invoice data",
			zap.String("invoice_id", record.ID),
			zap.Int("record", i+1),
			zap.Int("of", len(records)))

		inv, issues, err := a.buildInvoice(ctx, record, vendors, funds)
		if err != nil {
			return nil, err
		}
		issues = append(issues, inv.Validate(a.eligiblePaymentMethods)...)

		if len(issues) > 0 {
			if err := inv.MarkFailedValidation(); err != nil {
				return nil, err
			}
			grouped.Rejected = append(grouped.Rejected, invoice.Rejection{Invoice: inv, Issues: issues})
			a.logger.Warn("invoice failed validation",
				zap.String("invoice_id", inv.ID),
				zap.Int("issues", len(issues)))
			continue
		}
		grouped.Batches[inv.Type] = append(grouped.Batches[inv.Type], inv)
	}

	return grouped, nil
}

// buildInvoice maps a raw ILS record into the domain invoice, resolving
// vendor and fund reference data through per-run memoized lookups. Reference
// data that is missing (as opposed to unreachable) becomes a validation
// issue, not an error.
func (a *Aggregator) buildInvoice(ctx context.Context, record InvoiceRecord, vendors map[string]*VendorRecord, funds map[string]*FundRecord) (*invoice.Invoice, []invoice.Issue, error) {
	total, err := valueobject.NewMoney(record.TotalAmount, valueobject.Currency(record.Currency))
	if err != nil {
		// carry a currencyless total; validation reports the missing currency
		total = valueobject.Money{}
	}
	inv, err := invoice.New(record.ID, record.Number, record.Date, record.PaymentMethod, total, record.VendorCode)
	if err != nil {
		return nil, nil, fmt.Errorf("building invoice %s: %w", record.ID, err)
	}

	var issues []invoice.Issue

	vendor, err := a.resolveVendor(ctx, record.VendorCode, vendors)
	if err != nil {
		return nil, nil, err
	}
	if vendor != nil {
		inv.Vendor = &invoice.Vendor{
			Code:    vendor.Code,
			Name:    vendor.Name,
			Address: vendor.Address,
		}
	}

	lines, fundIssues, err := a.resolveFundLines(ctx, record, funds)
	if err != nil {
		return nil, nil, err
	}
	inv.FundLines = lines
	issues = append(issues, fundIssues...)

	return inv, issues, nil
}

func (a *Aggregator) resolveVendor(ctx context.Context, code string, cache map[string]*VendorRecord) (*VendorRecord, error) {
	if vendor, ok := cache[code]; ok {
		return vendor, nil
	}
	a.logger.Debug("retrieving vendor", zap.String("vendor_code", code))
	vendor, err := a.gateway.GetVendor(ctx, code)
	if errors.Is(err, shared.ErrNotFound) {
		cache[code] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving vendor %s: %w", code, err)
	}
	cache[code] = vendor
	return vendor, nil
}

// resolveFundLines maps fund distributions to AP fund lines, merging amounts
// for distributions whose funds share one external ID (the same cost object
// and G/L account). Merged lines are ordered by external ID so re-running
// against an unchanged source set renders identically.
func (a *Aggregator) resolveFundLines(ctx context.Context, record InvoiceRecord, cache map[string]*FundRecord) ([]invoice.FundLine, []invoice.Issue, error) {
	currency := valueobject.Currency(record.Currency)
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	merged := make(map[string]invoice.FundLine)
	var issues []invoice.Issue
	for _, dist := range record.Lines {
		fund, ok := cache[dist.FundCode]
		if !ok {
			a.logger.Debug("retrieving fund", zap.String("fund_code", dist.FundCode))
			resolved, err := a.gateway.GetFund(ctx, dist.FundCode)
			if errors.Is(err, shared.ErrNotFound) {
				issues = append(issues, invoice.Issue{
					Reason: invoice.ReasonUnknownFundCode,
					Detail: fmt.Sprintf("fund %s could not be retrieved by code, may be overexpended", dist.FundCode),
				})
				continue
			}
			if err != nil {
				return nil, nil, fmt.Errorf("retrieving fund %s: %w", dist.FundCode, err)
			}
			cache[dist.FundCode] = resolved
			fund = resolved
		}
		if fund == nil {
			continue
		}

		externalID := strings.TrimSpace(fund.ExternalID)
		costObject, glAccount, _ := strings.Cut(externalID, "-")
		amount, err := valueobject.NewMoney(dist.Amount, currency)
		if err != nil {
			return nil, nil, fmt.Errorf("fund %s amount: %w", dist.FundCode, err)
		}
		if line, ok := merged[externalID]; ok {
			sum, err := line.Amount.Add(amount)
			if err != nil {
				return nil, nil, fmt.Errorf("merging fund %s amounts: %w", dist.FundCode, err)
			}
			line.Amount = sum
			merged[externalID] = line
			continue
		}
		merged[externalID] = invoice.FundLine{
			FundCode:   dist.FundCode,
			CostObject: costObject,
			GLAccount:  glAccount,
			Amount:     amount,
		}
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := make([]invoice.FundLine, 0, len(merged))
	for _, key := range keys {
		lines = append(lines, merged[key])
	}
	return lines, issues, nil
}
