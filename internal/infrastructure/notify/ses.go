// Package notify emails run reports to staff through Amazon SESv2.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/libops/sapinvoices/internal/domain/feed"
	"github.com/libops/sapinvoices/internal/domain/invoice"
	"go.uber.org/zap"
)

// sesAPI is the slice of the SESv2 client the mailer uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Config holds the mailer settings. Review and final runs go to different
// recipient lists: review reports reach the invoice reviewers, final reports
// the accounting distribution list.
type Config struct {
	From             string
	ReviewRecipients []string
	FinalRecipients  []string
}

// SESMailer sends the batch summary as the message body with the cover
// sheets attached as a printable text file.
type SESMailer struct {
	client sesAPI
	config Config
	logger *zap.Logger
}

// NewSESMailer creates a mailer over the given SESv2 client
func NewSESMailer(client *sesv2.Client, config Config, logger *zap.Logger) (*SESMailer, error) {
	return newSESMailer(client, config, logger)
}

func newSESMailer(client sesAPI, config Config, logger *zap.Logger) (*SESMailer, error) {
	if config.From == "" {
		return nil, fmt.Errorf("mailer sender address is required")
	}
	if len(config.ReviewRecipients) == 0 && len(config.FinalRecipients) == 0 {
		return nil, fmt.Errorf("mailer needs at least one recipient list")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SESMailer{client: client, config: config, logger: logger}, nil
}

// SendBatchReport emails one batch's summary and cover sheets
func (m *SESMailer) SendBatchReport(ctx context.Context, mode feed.Mode, key invoice.PurchaseType, runDate time.Time, summary, coverSheets string) error {
	recipients := m.config.FinalRecipients
	if mode == feed.ModeReview {
		recipients = m.config.ReviewRecipients
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients configured for %s runs", mode)
	}

	subject := fmt.Sprintf("Libraries invoice feed - %s - %s", key, runDate.Format("2006-01-02"))
	if mode == feed.ModeReview {
		subject = "REVIEW - " + subject
	}
	attachmentName := fmt.Sprintf("cover_sheets_%s_%s.txt", key, runDate.Format("20060102"))

	raw, err := buildRawMessage(m.config.From, recipients, subject, summary, attachmentName, coverSheets)
	if err != nil {
		return fmt.Errorf("building report email: %w", err)
	}

	_, err = m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.config.From),
		Destination:      &types.Destination{ToAddresses: recipients},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return fmt.Errorf("sending report email: %w", err)
	}
	m.logger.Info("sent batch report",
		zap.String("batch_key", string(key)),
		zap.String("subject", subject),
		zap.Strings("to", recipients))
	return nil
}

// buildRawMessage assembles a multipart/mixed MIME message with a plain-text
// body and one plain-text attachment.
func buildRawMessage(from string, to []string, subject, body, attachmentName, attachment string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", writer.Boundary())
	buf.WriteString("\r\n")

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(body)); err != nil {
		return nil, err
	}

	attachmentHeader := textproto.MIMEHeader{}
	attachmentHeader.Set("Content-Type", "text/plain; charset=utf-8")
	attachmentHeader.Set("Content-Transfer-Encoding", "base64")
	attachmentHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachmentName))
	part, err = writer.CreatePart(attachmentHeader)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(attachment))
	if _, err := part.Write([]byte(encoded)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
