package feed

import (
	"errors"
	"testing"

	"github.com/libops/sapinvoices/internal/domain/feed"
	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/stretchr/testify/assert"
)

func TestBuildRunReport(t *testing.T) {
	t.Run("successful run", func(t *testing.T) {
		report := BuildRunReport(&RunResult{
			Retrieved: 3,
			Batches: []BatchResult{
				{Key: invoice.PurchaseTypeMonograph, State: feed.BatchReconciled, InvoiceCount: 2, PaidCount: 2},
				{Key: invoice.PurchaseTypeSerial, State: feed.BatchReconciled, InvoiceCount: 1, PaidCount: 1},
			},
		})
		assert.Equal(t, 3, report.Validated)
		assert.Equal(t, 2, report.BatchesSent)
		assert.Equal(t, 0, report.BatchesFailed)
		assert.Equal(t, 3, report.InvoicesPaid)
		assert.Empty(t, report.RequiresAttention)
	})

	t.Run("rejections counted by reason", func(t *testing.T) {
		inv := &invoice.Invoice{}
		report := BuildRunReport(&RunResult{
			Retrieved: 2,
			Rejected: []invoice.Rejection{
				{Invoice: inv, Issues: []invoice.Issue{
					{Reason: invoice.ReasonFundSumMismatch},
					{Reason: invoice.ReasonMultibyteCharacter},
				}},
				{Invoice: inv, Issues: []invoice.Issue{
					{Reason: invoice.ReasonFundSumMismatch},
				}},
			},
		})
		assert.Equal(t, 2, report.RejectedCount)
		assert.Equal(t, 2, report.RejectionsByReason[invoice.ReasonFundSumMismatch])
		assert.Equal(t, 1, report.RejectionsByReason[invoice.ReasonMultibyteCharacter])
	})

	t.Run("reconcile failure needs attention", func(t *testing.T) {
		report := BuildRunReport(&RunResult{
			Batches: []BatchResult{{
				Key:          invoice.PurchaseTypeMonograph,
				State:        feed.BatchReconcileFailed,
				InvoiceCount: 3,
				PaidCount:    2,
				FailedIDs:    []string{"7"},
			}},
		})
		assert.Equal(t, 1, report.BatchesFailed)
		assert.Equal(t, []string{"7"}, report.MarkPaidFailedIDs)
		assert.Len(t, report.RequiresAttention, 1)
	})

	t.Run("uncommitted sequence needs attention", func(t *testing.T) {
		report := BuildRunReport(&RunResult{
			Batches: []BatchResult{{
				Key:       invoice.PurchaseTypeSerial,
				State:     feed.BatchReconciled,
				CommitErr: errors.New("conflict"),
			}},
		})
		assert.Len(t, report.RequiresAttention, 1)
	})

	t.Run("non-real final run counts delivered batches as sent", func(t *testing.T) {
		report := BuildRunReport(&RunResult{
			Batches: []BatchResult{{
				Key:             invoice.PurchaseTypeMonograph,
				State:           feed.BatchDelivered,
				InvoiceCount:    2,
				MarkPaidSkipped: true,
			}},
		})
		assert.Equal(t, 1, report.BatchesSent)
		assert.Equal(t, 0, report.BatchesFailed)
	})
}
