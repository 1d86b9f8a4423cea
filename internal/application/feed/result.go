package feed

import (
	"sort"

	"github.com/libops/sapinvoices/internal/domain/feed"
	"github.com/libops/sapinvoices/internal/domain/invoice"
)

// RunReport is the machine-readable rollup of a completed run, built purely
// from the run result. It feeds the final log line and the process exit code.
type RunReport struct {
	Retrieved          int
	Validated          int
	RejectedCount      int
	RejectionsByReason map[invoice.ReasonCode]int
	BatchesSent        int
	BatchesFailed      int
	InvoicesPaid       int
	MarkPaidFailedIDs  []string
	RequiresAttention  []string
}

// BuildRunReport aggregates batch and rejection outcomes. RequiresAttention
// lists conditions that need an operator before the next final run: delivered
// files whose invoices are not all marked paid, and sequence numbers that were
// used but not committed.
func BuildRunReport(result *RunResult) RunReport {
	report := RunReport{
		Retrieved:          result.Retrieved,
		RejectedCount:      len(result.Rejected),
		RejectionsByReason: make(map[invoice.ReasonCode]int),
	}

	for _, rej := range result.Rejected {
		for _, issue := range rej.Issues {
			report.RejectionsByReason[issue.Reason]++
		}
	}

	for _, batch := range result.Batches {
		report.Validated += batch.InvoiceCount
		report.InvoicesPaid += batch.PaidCount
		report.MarkPaidFailedIDs = append(report.MarkPaidFailedIDs, batch.FailedIDs...)

		switch {
		case batch.State.IsTerminal() && batch.State.Succeeded():
			report.BatchesSent++
		case batch.State.IsTerminal():
			report.BatchesFailed++
			if batch.State == feed.BatchReconcileFailed {
				report.RequiresAttention = append(report.RequiresAttention,
					"batch "+string(batch.Key)+" was delivered but not all invoices were marked paid")
			}
		case batch.MarkPaidSkipped:
			// delivered without reconciling is the expected end state of a
			// non-real final run
			report.BatchesSent++
		case batch.Err != nil:
			report.BatchesFailed++
		}

		if batch.CommitErr != nil {
			report.RequiresAttention = append(report.RequiresAttention,
				"sequence "+string(batch.Key)+" was used for a delivered file but not committed")
		}
	}

	sort.Strings(report.MarkPaidFailedIDs)
	return report
}
