package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/libops/sapinvoices/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var eligibleMethods = []string{"ACCOUNTINGDEPARTMENT"}

func testRecord(id, number, vendorCode string, total float64, fundAmounts map[string]float64) InvoiceRecord {
	record := InvoiceRecord{
		ID:            id,
		Number:        number,
		Date:          time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		VendorCode:    vendorCode,
		PaymentMethod: "ACCOUNTINGDEPARTMENT",
		Currency:      "USD",
		TotalAmount:   decimal.NewFromFloat(total),
	}
	for code, amount := range fundAmounts {
		record.Lines = append(record.Lines, FundDistribution{FundCode: code, Amount: decimal.NewFromFloat(amount)})
	}
	return record
}

func testVendor(code string) *VendorRecord {
	return &VendorRecord{
		Code: code,
		Name: "Acme Scholarly Books",
		Address: invoice.Address{
			Lines:       []string{"100 Main St"},
			City:        "Cambridge",
			PostalCode:  "02139",
			CountryCode: "US",
		},
	}
}

func TestAggregator_FetchAndGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("groups valid invoices by purchase type", func(t *testing.T) {
		gateway := new(mockGateway)
		gateway.On("ListReadyToBePaid", mock.Anything).Return([]InvoiceRecord{
			testRecord("1", "INV-1", "ACME", 100, map[string]float64{"FUND-A": 100}),
			testRecord("2", "INV-2", "ELSEVIER-S", 250, map[string]float64{"FUND-B": 250}),
		}, nil)
		gateway.On("GetVendor", mock.Anything, "ACME").Return(testVendor("ACME"), nil)
		gateway.On("GetVendor", mock.Anything, "ELSEVIER-S").Return(testVendor("ELSEVIER-S"), nil)
		gateway.On("GetFund", mock.Anything, "FUND-A").Return(&FundRecord{Code: "FUND-A", ExternalID: "1234567-800100"}, nil)
		gateway.On("GetFund", mock.Anything, "FUND-B").Return(&FundRecord{Code: "FUND-B", ExternalID: "7654321-800200"}, nil)

		aggregator := NewAggregator(gateway, eligibleMethods, zap.NewNop())
		grouped, err := aggregator.FetchAndGroup(ctx)
		require.NoError(t, err)

		assert.Len(t, grouped.Batches[invoice.PurchaseTypeMonograph], 1)
		assert.Len(t, grouped.Batches[invoice.PurchaseTypeSerial], 1)
		assert.Empty(t, grouped.Rejected)
		assert.Equal(t, 2, grouped.TotalInvoices())

		mono := grouped.Batches[invoice.PurchaseTypeMonograph][0]
		require.Len(t, mono.FundLines, 1)
		assert.Equal(t, "1234567", mono.FundLines[0].CostObject)
		assert.Equal(t, "800100", mono.FundLines[0].GLAccount)
	})

	t.Run("vendor and fund lookups are memoized per run", func(t *testing.T) {
		gateway := new(mockGateway)
		gateway.On("ListReadyToBePaid", mock.Anything).Return([]InvoiceRecord{
			testRecord("1", "INV-1", "ACME", 100, map[string]float64{"FUND-A": 100}),
			testRecord("2", "INV-2", "ACME", 50, map[string]float64{"FUND-A": 50}),
		}, nil)
		gateway.On("GetVendor", mock.Anything, "ACME").Return(testVendor("ACME"), nil).Once()
		gateway.On("GetFund", mock.Anything, "FUND-A").Return(&FundRecord{Code: "FUND-A", ExternalID: "1234567-800100"}, nil).Once()

		aggregator := NewAggregator(gateway, eligibleMethods, zap.NewNop())
		_, err := aggregator.FetchAndGroup(ctx)
		require.NoError(t, err)
		gateway.AssertExpectations(t)
	})

	t.Run("fund lines sharing an external ID are merged and ordered", func(t *testing.T) {
		gateway := new(mockGateway)
		record := InvoiceRecord{
			ID: "1", Number: "INV-1", Date: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
			VendorCode: "ACME", PaymentMethod: "ACCOUNTINGDEPARTMENT", Currency: "USD",
			TotalAmount: decimal.NewFromInt(300),
			Lines: []FundDistribution{
				{FundCode: "FUND-Z", Amount: decimal.NewFromInt(100)},
				{FundCode: "FUND-A", Amount: decimal.NewFromInt(150)},
				{FundCode: "FUND-B", Amount: decimal.NewFromInt(50)},
			},
		}
		gateway.On("ListReadyToBePaid", mock.Anything).Return([]InvoiceRecord{record}, nil)
		gateway.On("GetVendor", mock.Anything, "ACME").Return(testVendor("ACME"), nil)
		// FUND-Z and FUND-B resolve to the same cost object and G/L account
		gateway.On("GetFund", mock.Anything, "FUND-Z").Return(&FundRecord{Code: "FUND-Z", ExternalID: "7654321-800200"}, nil)
		gateway.On("GetFund", mock.Anything, "FUND-A").Return(&FundRecord{Code: "FUND-A", ExternalID: "1234567-800100"}, nil)
		gateway.On("GetFund", mock.Anything, "FUND-B").Return(&FundRecord{Code: "FUND-B", ExternalID: "7654321-800200"}, nil)

		aggregator := NewAggregator(gateway, eligibleMethods, zap.NewNop())
		grouped, err := aggregator.FetchAndGroup(ctx)
		require.NoError(t, err)

		inv := grouped.Batches[invoice.PurchaseTypeMonograph][0]
		require.Len(t, inv.FundLines, 2)
		assert.Equal(t, "1234567", inv.FundLines[0].CostObject)
		assert.True(t, inv.FundLines[0].Amount.Amount().Equal(decimal.NewFromInt(150)))
		assert.Equal(t, "7654321", inv.FundLines[1].CostObject)
		assert.True(t, inv.FundLines[1].Amount.Amount().Equal(decimal.NewFromInt(150)), "merged 100 + 50")
	})

	t.Run("missing vendor rejects the invoice without blocking others", func(t *testing.T) {
		gateway := new(mockGateway)
		gateway.On("ListReadyToBePaid", mock.Anything).Return([]InvoiceRecord{
			testRecord("1", "INV-1", "GHOST", 100, map[string]float64{"FUND-A": 100}),
			testRecord("2", "INV-2", "ACME", 50, map[string]float64{"FUND-A": 50}),
		}, nil)
		gateway.On("GetVendor", mock.Anything, "GHOST").Return(nil, shared.ErrNotFound)
		gateway.On("GetVendor", mock.Anything, "ACME").Return(testVendor("ACME"), nil)
		gateway.On("GetFund", mock.Anything, "FUND-A").Return(&FundRecord{Code: "FUND-A", ExternalID: "1234567-800100"}, nil)

		aggregator := NewAggregator(gateway, eligibleMethods, zap.NewNop())
		grouped, err := aggregator.FetchAndGroup(ctx)
		require.NoError(t, err)

		require.Len(t, grouped.Rejected, 1)
		assert.Equal(t, "1", grouped.Rejected[0].Invoice.ID)
		assert.Equal(t, invoice.StatusFailedValidation, grouped.Rejected[0].Invoice.Status())
		assert.Equal(t, invoice.ReasonMissingVendor, grouped.Rejected[0].Issues[0].Reason)
		assert.Len(t, grouped.Batches[invoice.PurchaseTypeMonograph], 1)
	})

	t.Run("unknown fund code rejects via fund sum mismatch path", func(t *testing.T) {
		gateway := new(mockGateway)
		gateway.On("ListReadyToBePaid", mock.Anything).Return([]InvoiceRecord{
			testRecord("1", "INV-1", "ACME", 100, map[string]float64{"FUND-X": 100}),
		}, nil)
		gateway.On("GetVendor", mock.Anything, "ACME").Return(testVendor("ACME"), nil)
		gateway.On("GetFund", mock.Anything, "FUND-X").Return(nil, shared.ErrNotFound)

		aggregator := NewAggregator(gateway, eligibleMethods, zap.NewNop())
		grouped, err := aggregator.FetchAndGroup(ctx)
		require.NoError(t, err)

		require.Len(t, grouped.Rejected, 1)
		reasons := make(map[invoice.ReasonCode]bool)
		for _, issue := range grouped.Rejected[0].Issues {
			reasons[issue.Reason] = true
		}
		assert.True(t, reasons[invoice.ReasonUnknownFundCode])
		assert.True(t, reasons[invoice.ReasonNoFundLines])
	})

	t.Run("ineligible payment method is rejected", func(t *testing.T) {
		record := testRecord("1", "INV-1", "ACME", 100, map[string]float64{"FUND-A": 100})
		record.PaymentMethod = "BANKTRANSFER"
		gateway := new(mockGateway)
		gateway.On("ListReadyToBePaid", mock.Anything).Return([]InvoiceRecord{record}, nil)
		gateway.On("GetVendor", mock.Anything, "ACME").Return(testVendor("ACME"), nil)
		gateway.On("GetFund", mock.Anything, "FUND-A").Return(&FundRecord{Code: "FUND-A", ExternalID: "1234567-800100"}, nil)

		aggregator := NewAggregator(gateway, eligibleMethods, zap.NewNop())
		grouped, err := aggregator.FetchAndGroup(ctx)
		require.NoError(t, err)

		require.Len(t, grouped.Rejected, 1)
		assert.Equal(t, invoice.ReasonUnknownPaymentMethod, grouped.Rejected[0].Issues[0].Reason)
	})

	t.Run("transport failure on reference data aborts the run", func(t *testing.T) {
		gateway := new(mockGateway)
		gateway.On("ListReadyToBePaid", mock.Anything).Return([]InvoiceRecord{
			testRecord("1", "INV-1", "ACME", 100, map[string]float64{"FUND-A": 100}),
		}, nil)
		gateway.On("GetVendor", mock.Anything, "ACME").Return(nil, errors.New("connection reset"))

		aggregator := NewAggregator(gateway, eligibleMethods, zap.NewNop())
		_, err := aggregator.FetchAndGroup(ctx)
		assert.Error(t, err)
	})

	t.Run("listing failure aborts the run", func(t *testing.T) {
		gateway := new(mockGateway)
		gateway.On("ListReadyToBePaid", mock.Anything).Return(nil, errors.New("503"))

		aggregator := NewAggregator(gateway, eligibleMethods, zap.NewNop())
		_, err := aggregator.FetchAndGroup(ctx)
		assert.Error(t, err)
	})
}
