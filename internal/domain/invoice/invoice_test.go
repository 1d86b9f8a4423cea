package invoice

import (
	"testing"
	"time"

	"github.com/libops/sapinvoices/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eligibleMethods = map[string]bool{"ACCOUNTINGDEPARTMENT": true}

// Test helpers

func createTestInvoice(t *testing.T) *Invoice {
	inv, err := New(
		"9991",
		"INV-2026-001",
		time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		"ACCOUNTINGDEPARTMENT",
		valueobject.NewMoneyUSDFromFloat(150.00),
		"ACME",
	)
	require.NoError(t, err)
	inv.Vendor = &Vendor{
		Code: "ACME",
		Name: "Acme Scholarly Books",
		Address: Address{
			Lines:       []string{"100 Main St"},
			City:        "Cambridge",
			PostalCode:  "02139",
			CountryCode: "US",
		},
	}
	inv.FundLines = []FundLine{
		{FundCode: "HIST", CostObject: "1234567", GLAccount: "800100", Amount: valueobject.NewMoneyUSDFromFloat(100.00)},
		{FundCode: "SCI", CostObject: "1234567", GLAccount: "800200", Amount: valueobject.NewMoneyUSDFromFloat(50.00)},
	}
	return inv
}

func TestNew(t *testing.T) {
	t.Run("creates invoice in ready status", func(t *testing.T) {
		inv := createTestInvoice(t)
		assert.Equal(t, StatusReadyToBePaid, inv.Status())
		assert.Equal(t, PurchaseTypeMonograph, inv.Type)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		_, err := New("", "N1", time.Now(), "ACCOUNTINGDEPARTMENT", valueobject.NewMoneyUSDFromFloat(1), "ACME")
		assert.Error(t, err)
	})

	t.Run("rejects zero date", func(t *testing.T) {
		_, err := New("1", "N1", time.Time{}, "ACCOUNTINGDEPARTMENT", valueobject.NewMoneyUSDFromFloat(1), "ACME")
		assert.Error(t, err)
	})
}

func TestPurchaseTypeForVendor(t *testing.T) {
	assert.Equal(t, PurchaseTypeSerial, PurchaseTypeForVendor("ELSEVIER-S"))
	assert.Equal(t, PurchaseTypeMonograph, PurchaseTypeForVendor("ACME"))
	assert.Equal(t, "ser", PurchaseTypeSerial.SequenceKey())
	assert.Equal(t, "mono", PurchaseTypeMonograph.SequenceKey())
}

func TestInvoice_ExternalReference(t *testing.T) {
	inv := createTestInvoice(t)
	assert.Equal(t, "INV-2026-001260810", inv.ExternalReference())
}

func TestInvoice_StatusTransitions(t *testing.T) {
	t.Run("ready to included to paid", func(t *testing.T) {
		inv := createTestInvoice(t)
		require.NoError(t, inv.MarkIncluded())
		assert.Equal(t, StatusIncluded, inv.Status())
		require.NoError(t, inv.MarkPaid())
		assert.Equal(t, StatusPaid, inv.Status())
	})

	t.Run("included to failed transmission", func(t *testing.T) {
		inv := createTestInvoice(t)
		require.NoError(t, inv.MarkIncluded())
		require.NoError(t, inv.MarkFailedTransmission())
		assert.Equal(t, StatusFailedTransmission, inv.Status())
		assert.True(t, inv.Status().IsTerminal())
	})

	t.Run("cannot pay without inclusion", func(t *testing.T) {
		inv := createTestInvoice(t)
		assert.Error(t, inv.MarkPaid())
	})

	t.Run("cannot include twice", func(t *testing.T) {
		inv := createTestInvoice(t)
		require.NoError(t, inv.MarkIncluded())
		assert.Error(t, inv.MarkIncluded())
	})

	t.Run("failed validation is terminal", func(t *testing.T) {
		inv := createTestInvoice(t)
		require.NoError(t, inv.MarkFailedValidation())
		assert.Error(t, inv.MarkIncluded())
	})
}

func TestInvoice_Validate(t *testing.T) {
	t.Run("valid invoice has no issues", func(t *testing.T) {
		inv := createTestInvoice(t)
		assert.Empty(t, inv.Validate(eligibleMethods))
	})

	t.Run("fund sum mismatch", func(t *testing.T) {
		inv := createTestInvoice(t)
		inv.FundLines[1].Amount = valueobject.NewMoneyUSDFromFloat(49.00)
		issues := inv.Validate(eligibleMethods)
		require.Len(t, issues, 1)
		assert.Equal(t, ReasonFundSumMismatch, issues[0].Reason)
	})

	t.Run("sum within minor unit tolerance passes", func(t *testing.T) {
		inv := createTestInvoice(t)
		inv.FundLines[1].Amount = valueobject.NewMoneyUSDFromFloat(50.01)
		assert.Empty(t, inv.Validate(eligibleMethods))
	})

	t.Run("zero fund line is rejected not dropped", func(t *testing.T) {
		inv := createTestInvoice(t)
		inv.FundLines = append(inv.FundLines, FundLine{FundCode: "EMPTY", Amount: valueobject.Zero(valueobject.USD)})
		issues := inv.Validate(eligibleMethods)
		reasons := reasonsOf(issues)
		assert.Contains(t, reasons, ReasonNonPositiveFundLine)
	})

	t.Run("missing vendor", func(t *testing.T) {
		inv := createTestInvoice(t)
		inv.Vendor = nil
		issues := inv.Validate(eligibleMethods)
		assert.Contains(t, reasonsOf(issues), ReasonMissingVendor)
	})

	t.Run("vendor without address", func(t *testing.T) {
		inv := createTestInvoice(t)
		inv.Vendor.Address = Address{}
		issues := inv.Validate(eligibleMethods)
		assert.Contains(t, reasonsOf(issues), ReasonVendorAddressMissing)
	})

	t.Run("ineligible payment method", func(t *testing.T) {
		inv := createTestInvoice(t)
		inv.PaymentMethod = "CREDITCARD"
		issues := inv.Validate(eligibleMethods)
		assert.Contains(t, reasonsOf(issues), ReasonUnknownPaymentMethod)
	})

	t.Run("no fund lines", func(t *testing.T) {
		inv := createTestInvoice(t)
		inv.FundLines = nil
		issues := inv.Validate(eligibleMethods)
		assert.Contains(t, reasonsOf(issues), ReasonNoFundLines)
	})

	t.Run("multibyte character in vendor name", func(t *testing.T) {
		inv := createTestInvoice(t)
		inv.Vendor.Name = "Librairie Métropole"
		issues := inv.Validate(eligibleMethods)
		require.Len(t, issues, 1)
		assert.Equal(t, ReasonMultibyteCharacter, issues[0].Reason)
		assert.Contains(t, issues[0].Detail, "vendor.name")
	})

	t.Run("independent rules all reported", func(t *testing.T) {
		inv := createTestInvoice(t)
		inv.PaymentMethod = "CREDITCARD"
		inv.FundLines[0].Amount = valueobject.NewMoneyUSDFromFloat(10.00)
		issues := inv.Validate(eligibleMethods)
		reasons := reasonsOf(issues)
		assert.Contains(t, reasons, ReasonUnknownPaymentMethod)
		assert.Contains(t, reasons, ReasonFundSumMismatch)
	})
}

func reasonsOf(issues []Issue) []ReasonCode {
	reasons := make([]ReasonCode, 0, len(issues))
	for _, issue := range issues {
		reasons = append(reasons, issue.Reason)
	}
	return reasons
}
