package feed

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/libops/sapinvoices/internal/domain/feed"
	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/libops/sapinvoices/internal/domain/shared"
	"go.uber.org/zap"
)

// batchOrder fixes the processing order of batch keys within a run
var batchOrder = []invoice.PurchaseType{
	invoice.PurchaseTypeMonograph,
	invoice.PurchaseTypeSerial,
}

// RunOptions selects the behaviour of a single feed run. Mode review renders
// and reports without delivering; mode final delivers. Real gates the
// source-of-truth writes: a final run with Real false delivers the files but
// leaves every invoice unmarked, which is how delivery is exercised against
// a test dropbox.
type RunOptions struct {
	Mode feed.Mode
	Real bool
	Date time.Time
}

// BatchResult records the outcome of one transmission batch
type BatchResult struct {
	Key             invoice.PurchaseType
	Sequence        int
	State           feed.BatchState
	DataFileName    string
	ControlFileName string
	InvoiceCount    int
	PaidCount       int
	FailedIDs       []string
	Summary         string
	CoverSheets     string
	MarkPaidSkipped bool
	CommitErr       error
	Err             error
}

// RunResult aggregates the full run outcome for reporting and exit status
type RunResult struct {
	Options   RunOptions
	Retrieved int
	Rejected  []invoice.Rejection
	Batches   []BatchResult
}

// Succeeded returns false when any batch ended in a failure state or a
// sequence commit could not be confirmed.
func (r *RunResult) Succeeded() bool {
	for _, b := range r.Batches {
		if b.Err != nil || b.CommitErr != nil {
			return false
		}
		if b.State.IsTerminal() && !b.State.Succeeded() {
			return false
		}
	}
	return true
}

// Coordinator drives a feed run end to end: aggregate, render, deliver,
// commit the sequence, reconcile the source of truth, report.
type Coordinator struct {
	aggregator *Aggregator
	sequences  *SequenceAllocator
	gateway    InvoiceGateway
	delivery   FileDelivery
	notifier   Notifier
	orgName    string
	logger     *zap.Logger
}

// NewCoordinator wires the run collaborators together
func NewCoordinator(aggregator *Aggregator, sequences *SequenceAllocator, gateway InvoiceGateway, delivery FileDelivery, notifier Notifier, orgName string, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		aggregator: aggregator,
		sequences:  sequences,
		gateway:    gateway,
		delivery:   delivery,
		notifier:   notifier,
		orgName:    orgName,
		logger:     logger,
	}
}

// Run executes one feed run. Sequence numbers for every non-empty batch are
// read up front: a sequence store that cannot be read aborts the run before
// any invoice is touched, so a failed run leaves no trace. Batches are then
// processed independently; one batch's failure never blocks the other.
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	logger := c.logger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("starting feed run",
		zap.String("mode", string(opts.Mode)),
		zap.Bool("real", opts.Real),
		zap.Time("run_date", opts.Date))

	grouped, err := c.aggregator.FetchAndGroup(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		Options:   opts,
		Retrieved: grouped.TotalInvoices(),
		Rejected:  grouped.Rejected,
	}

	batches := make([]*feed.TransmissionBatch, 0, len(batchOrder))
	sequences := make(map[invoice.PurchaseType]int)
	for _, key := range batchOrder {
		invoices := grouped.Batches[key]
		if len(invoices) == 0 {
			logger.Info("no invoices for batch key, skipping", zap.String("batch_key", string(key)))
			continue
		}
		seq, err := c.sequences.Next(ctx, key.SequenceKey())
		if err != nil {
			return nil, err
		}
		sequences[key] = seq
		batches = append(batches, feed.NewTransmissionBatch(key, invoices))
	}

	for _, batch := range batches {
		result.Batches = append(result.Batches, c.processBatch(ctx, opts, batch, sequences[batch.Key], grouped.Rejected))
	}

	return result, nil
}

// processBatch carries one batch through render, delivery, and reconciliation.
// Errors are recorded on the result rather than returned: by the time this is
// called the run must account for every batch.
func (c *Coordinator) processBatch(ctx context.Context, opts RunOptions, batch *feed.TransmissionBatch, sequence int, rejected []invoice.Rejection) BatchResult {
	res := BatchResult{
		Key:          batch.Key,
		Sequence:     sequence,
		InvoiceCount: len(batch.Invoices),
	}
	logger := c.logger.With(
		zap.String("batch_key", string(batch.Key)),
		zap.Int("sequence", sequence))

	for _, inv := range batch.Invoices {
		if err := inv.MarkIncluded(); err != nil {
			res.Err = err
			res.State = batch.State()
			return res
		}
	}

	dataFile, err := feed.RenderDataFile(opts.Date, batch.Key, sequence, opts.Mode, batch.Invoices)
	if err != nil {
		res.Err = err
		res.State = batch.State()
		return res
	}
	if err := batch.MarkFormatted(sequence); err != nil {
		res.Err = err
		res.State = batch.State()
		return res
	}
	controlFile := feed.RenderControlFile(dataFile.Content, batch.TotalAmount().Amount())
	res.DataFileName = feed.DataFileName(sequence, opts.Date)
	res.ControlFileName = feed.ControlFileName(sequence, opts.Date)
	res.CoverSheets = feed.RenderCoverSheets(opts.Date, c.orgName, batch.Invoices)
	res.Summary = feed.RenderSummary(c.orgName, res.DataFileName, res.ControlFileName, batch.Invoices, rejectedForKey(rejected, batch.Key))
	logger.Info("rendered batch files",
		zap.String("data_file", res.DataFileName),
		zap.Int("detail_records", dataFile.DetailCount),
		zap.String("control_total", dataFile.ControlTotal.StringFixed(2)))

	if opts.Mode == feed.ModeReview {
		res.State = batch.State()
		c.report(ctx, opts, res, logger)
		return res
	}

	// The data file goes first: AP ignores a data file until its control
	// file arrives, so a failure between the two sends leaves nothing
	// actionable on the remote side.
	sendErr := c.delivery.Send(ctx, res.DataFileName, dataFile.Content)
	if sendErr == nil {
		sendErr = c.delivery.Send(ctx, res.ControlFileName, controlFile)
	}
	if sendErr != nil {
		logger.Error("delivery failed, batch abandoned with no source changes", zap.Error(sendErr))
		res.Err = sendErr
		if stateErr := batch.MarkDeliverFailed(); stateErr != nil {
			logger.Error("batch state update failed", zap.Error(stateErr))
			res.Err = errors.Join(sendErr, stateErr)
		}
		res.State = batch.State()
		return res
	}
	if err := batch.MarkDelivered(); err != nil {
		res.Err = err
		res.State = batch.State()
		return res
	}
	logger.Info("delivered batch files")

	// The files are out of our hands; the sequence must advance even if
	// the rest of the run fails. A commit conflict means another run got
	// there first and needs an operator before the next final run.
	if err := c.sequences.Commit(ctx, batch.Key.SequenceKey(), sequence); err != nil {
		logger.Error("sequence commit failed, next run may reuse this sequence", zap.Error(err))
		res.CommitErr = err
	}

	if !opts.Real {
		logger.Info("not a real run, leaving invoices unmarked")
		res.MarkPaidSkipped = true
		res.State = batch.State()
		c.report(ctx, opts, res, logger)
		return res
	}

	c.reconcile(ctx, opts, batch, &res, logger)
	res.State = batch.State()
	c.report(ctx, opts, res, logger)
	return res
}

// reconcile marks every delivered invoice paid in the ILS. A single failed
// update never stops the loop: the file is already at AP, so every invoice
// must be attempted and every failure recorded for manual follow-up.
func (c *Coordinator) reconcile(ctx context.Context, opts RunOptions, batch *feed.TransmissionBatch, res *BatchResult, logger *zap.Logger) {
	for _, inv := range batch.Invoices {
		if err := c.gateway.MarkPaid(ctx, inv.ID, opts.Date, inv.Total); err != nil {
			logger.Error("mark-paid failed, invoice needs manual follow-up",
				zap.String("invoice_id", inv.ID),
				zap.Error(err))
			res.FailedIDs = append(res.FailedIDs, inv.ID)
			if stateErr := inv.MarkFailedTransmission(); stateErr != nil {
				logger.Error("invoice state update failed", zap.String("invoice_id", inv.ID), zap.Error(stateErr))
			}
			continue
		}
		if err := inv.MarkPaid(); err != nil {
			logger.Error("invoice state update failed", zap.String("invoice_id", inv.ID), zap.Error(err))
			continue
		}
		res.PaidCount++
	}

	if len(res.FailedIDs) > 0 {
		res.Err = shared.ErrReconcileFailed
		if err := batch.MarkReconcileFailed(); err != nil {
			logger.Error("batch state update failed", zap.Error(err))
		}
		return
	}
	if err := batch.MarkReconciled(); err != nil {
		logger.Error("batch state update failed", zap.Error(err))
	}
}

// report sends the batch summary and cover sheets to staff on real runs and
// logs the summary otherwise. Reporting failures never fail the batch.
func (c *Coordinator) report(ctx context.Context, opts RunOptions, res BatchResult, logger *zap.Logger) {
	if !opts.Real {
		logger.Info("batch report", zap.String("summary", res.Summary))
		return
	}
	if err := c.notifier.SendBatchReport(ctx, opts.Mode, res.Key, opts.Date, res.Summary, res.CoverSheets); err != nil {
		logger.Error("sending batch report failed", zap.Error(err))
	}
}

// rejectedForKey filters the run's rejections to the given batch key so each
// batch summary warns about its own rejected invoices.
func rejectedForKey(rejected []invoice.Rejection, key invoice.PurchaseType) []invoice.Rejection {
	var out []invoice.Rejection
	for _, rej := range rejected {
		if rej.Invoice.Type == key {
			out = append(out, rej)
		}
	}
	return out
}
