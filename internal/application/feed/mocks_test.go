package feed

import (
	"context"
	"time"

	"github.com/libops/sapinvoices/internal/domain/feed"
	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/libops/sapinvoices/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/mock"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ListReadyToBePaid(ctx context.Context) ([]InvoiceRecord, error) {
	args := m.Called(ctx)
	if records, ok := args.Get(0).([]InvoiceRecord); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) GetVendor(ctx context.Context, vendorCode string) (*VendorRecord, error) {
	args := m.Called(ctx, vendorCode)
	if vendor, ok := args.Get(0).(*VendorRecord); ok {
		return vendor, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) GetFund(ctx context.Context, fundCode string) (*FundRecord, error) {
	args := m.Called(ctx, fundCode)
	if fund, ok := args.Get(0).(*FundRecord); ok {
		return fund, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) MarkPaid(ctx context.Context, invoiceID string, paidAt time.Time, amount valueobject.Money) error {
	args := m.Called(ctx, invoiceID, paidAt, amount)
	return args.Error(0)
}

type mockSequenceStore struct {
	mock.Mock
}

func (m *mockSequenceStore) Current(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *mockSequenceStore) CompareAndSwap(ctx context.Context, key string, old, next int) error {
	args := m.Called(ctx, key, old, next)
	return args.Error(0)
}

type mockDelivery struct {
	mock.Mock
}

func (m *mockDelivery) Send(ctx context.Context, fileName string, content []byte) error {
	args := m.Called(ctx, fileName, content)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendBatchReport(ctx context.Context, mode feed.Mode, key invoice.PurchaseType, runDate time.Time, summary, coverSheets string) error {
	args := m.Called(ctx, mode, key, runDate, summary, coverSheets)
	return args.Error(0)
}
