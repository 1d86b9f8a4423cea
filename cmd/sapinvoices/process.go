package main

import (
	"context"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appfeed "github.com/libops/sapinvoices/internal/application/feed"
	"github.com/libops/sapinvoices/internal/domain/feed"
	"github.com/libops/sapinvoices/internal/infrastructure/alma"
	"github.com/libops/sapinvoices/internal/infrastructure/config"
	"github.com/libops/sapinvoices/internal/infrastructure/delivery"
	"github.com/libops/sapinvoices/internal/infrastructure/logger"
	"github.com/libops/sapinvoices/internal/infrastructure/notify"
	"github.com/libops/sapinvoices/internal/infrastructure/sequencestore"
)

func processCmd() *cobra.Command {
	var finalRun bool
	var realRun bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the invoice feed",
		Long: `Run the invoice feed.

Without flags this is a review run: the feed files are rendered and reported
but nothing is delivered and no invoice is touched. --final-run delivers the
files to the AP dropbox. --real-run gates the outward writes: on a final run
it marks the delivered invoices paid in Alma and emails the run reports; on
a review run it emails the review report to the review recipients. A final
run without --real-run exercises delivery against the dropbox and leaves
Alma untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), finalRun, realRun)
		},
	}

	cmd.Flags().BoolVar(&finalRun, "final-run", false, "deliver the feed files to the AP dropbox")
	cmd.Flags().BoolVar(&realRun, "real-run", false, "mark invoices paid and email reports")

	return cmd
}

func runProcess(ctx context.Context, finalRun, realRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	mode := feed.ModeReview
	if finalRun {
		mode = feed.ModeFinal
	}

	coordinator, err := wire(ctx, cfg, mode, realRun, log)
	if err != nil {
		return err
	}

	result, err := coordinator.Run(ctx, appfeed.RunOptions{
		Mode: mode,
		Real: realRun,
		Date: time.Now().UTC(),
	})
	if err != nil {
		log.Error("feed run aborted", zap.Error(err))
		return err
	}

	report := appfeed.BuildRunReport(result)
	log.Info("feed run finished",
		zap.String("mode", string(mode)),
		zap.Bool("real", realRun),
		zap.Int("retrieved", report.Retrieved),
		zap.Int("validated", report.Validated),
		zap.Int("rejected", report.RejectedCount),
		zap.Int("batches_sent", report.BatchesSent),
		zap.Int("batches_failed", report.BatchesFailed),
		zap.Int("invoices_paid", report.InvoicesPaid),
		zap.Strings("mark_paid_failed", report.MarkPaidFailedIDs))
	for _, attention := range report.RequiresAttention {
		log.Error("requires operator attention", zap.String("detail", attention))
	}

	if !result.Succeeded() {
		return fmt.Errorf("feed run finished with failures")
	}
	return nil
}

// wire builds the coordinator and its collaborators for the selected mode.
// Review runs need only the Alma client and the sequence store; delivery and
// mail settings are validated only when the run will use them.
func wire(ctx context.Context, cfg *config.Config, mode feed.Mode, realRun bool, log *zap.Logger) (*appfeed.Coordinator, error) {
	almaClient, err := alma.NewClient(cfg.Alma.BaseURL, cfg.Alma.APIKey, log.Named("alma"),
		alma.WithTimeout(cfg.Alma.Timeout),
		alma.WithMaxRetries(cfg.Alma.MaxRetries))
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	store := sequencestore.NewSSMStore(ssm.NewFromConfig(awsCfg), cfg.Feed.SequenceParameterPath, log.Named("sequence"))

	var fileDelivery appfeed.FileDelivery = delivery.NewMemoryDelivery()
	if mode == feed.ModeFinal {
		key, err := os.ReadFile(cfg.SFTP.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading sftp private key: %w", err)
		}
		var hostKey []byte
		if cfg.SFTP.HostKeyPath != "" {
			hostKey, err = os.ReadFile(cfg.SFTP.HostKeyPath)
			if err != nil {
				return nil, fmt.Errorf("reading sftp host key: %w", err)
			}
		}
		fileDelivery, err = delivery.NewSFTPDelivery(delivery.Config{
			Host:          cfg.SFTP.Host,
			Port:          cfg.SFTP.Port,
			User:          cfg.SFTP.User,
			PrivateKeyPEM: key,
			HostKey:       hostKey,
			RemoteDir:     cfg.SFTP.RemoteDir,
		}, log.Named("sftp"))
		if err != nil {
			return nil, err
		}
	}

	var notifier appfeed.Notifier = notify.NewMemoryNotifier()
	if realRun {
		notifier, err = notify.NewSESMailer(sesv2.NewFromConfig(awsCfg), notify.Config{
			From:             cfg.Email.From,
			ReviewRecipients: cfg.Email.ReviewRecipients,
			FinalRecipients:  cfg.Email.FinalRecipients,
		}, log.Named("notify"))
		if err != nil {
			return nil, err
		}
	}

	aggregator := appfeed.NewAggregator(almaClient, cfg.Feed.EligiblePaymentMethods, log.Named("aggregate"))
	allocator := appfeed.NewSequenceAllocator(store, log.Named("sequence"))

	return appfeed.NewCoordinator(aggregator, allocator, almaClient, fileDelivery, notifier,
		cfg.App.OrgName, log.Named("feed")), nil
}
