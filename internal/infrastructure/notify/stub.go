package notify

import (
	"context"
	"sync"
	"time"

	"github.com/libops/sapinvoices/internal/domain/feed"
	"github.com/libops/sapinvoices/internal/domain/invoice"
)

// SentReport is one report captured by the in-memory notifier
type SentReport struct {
	Mode        feed.Mode
	Key         invoice.PurchaseType
	RunDate     time.Time
	Summary     string
	CoverSheets string
}

// MemoryNotifier records batch reports instead of sending them
type MemoryNotifier struct {
	mu      sync.Mutex
	reports []SentReport
	Err     error
}

// NewMemoryNotifier creates an empty recorder
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// SendBatchReport records the report
func (n *MemoryNotifier) SendBatchReport(_ context.Context, mode feed.Mode, key invoice.PurchaseType, runDate time.Time, summary, coverSheets string) error {
	if n.Err != nil {
		return n.Err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, SentReport{
		Mode:        mode,
		Key:         key,
		RunDate:     runDate,
		Summary:     summary,
		CoverSheets: coverSheets,
	})
	return nil
}

// Reports returns every recorded report
func (n *MemoryNotifier) Reports() []SentReport {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SentReport, len(n.reports))
	copy(out, n.reports)
	return out
}
