// Package alma implements the ILS invoice gateway against the Alma
// acquisitions REST API.
package alma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/libops/sapinvoices/internal/application/feed"
	"github.com/libops/sapinvoices/internal/domain/invoice"
	"github.com/libops/sapinvoices/internal/domain/shared"
	"github.com/libops/sapinvoices/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	invoiceDateLayout = "2006-01-02Z"
	pageSize          = 100
	// defaultCountry backstops vendor addresses with no country, per AP
	// instruction domestic vendors frequently omit it
	defaultCountry = "US"
)

// Client talks to the Alma acquisitions API and implements the invoice
// gateway port. All calls carry bounded exponential-backoff retry for 5xx
// and 429 responses and transport errors.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries uint64
	logger     *zap.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMaxRetries bounds the retry attempts per request
func WithMaxRetries(n uint64) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// NewClient creates an Alma API client
func NewClient(baseURL, apiKey string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("alma base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid alma base URL: %w", err)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("alma API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxRetries: 3,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListReadyToBePaid pages through every invoice in "Ready to be Paid"
// workflow status. Alma returns pages ordered by vendor code then invoice
// number; that order is preserved.
func (c *Client) ListReadyToBePaid(ctx context.Context) ([]feed.InvoiceRecord, error) {
	var records []feed.InvoiceRecord
	offset := 0
	for {
		query := url.Values{
			"invoice_workflow_status": {"Ready to be Paid"},
			"limit":                   {strconv.Itoa(pageSize)},
			"offset":                  {strconv.Itoa(offset)},
		}
		var page invoiceList
		if err := c.get(ctx, "/acq/invoices", query, &page); err != nil {
			return nil, fmt.Errorf("listing invoices at offset %d: %w", offset, err)
		}
		for _, payload := range page.Invoice {
			record, err := mapInvoice(payload)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
		offset += len(page.Invoice)
		if offset >= page.TotalRecordCount || len(page.Invoice) == 0 {
			return records, nil
		}
	}
}

// GetVendor retrieves a vendor by code and selects its payment address
func (c *Client) GetVendor(ctx context.Context, vendorCode string) (*feed.VendorRecord, error) {
	var payload vendorPayload
	if err := c.get(ctx, "/acq/vendors/"+url.PathEscape(vendorCode), nil, &payload); err != nil {
		return nil, fmt.Errorf("retrieving vendor %s: %w", vendorCode, err)
	}
	return &feed.VendorRecord{
		Code:    payload.Code,
		Name:    payload.Name,
		Address: selectPaymentAddress(payload.ContactInfo.Address),
	}, nil
}

// GetFund retrieves a fund by code. A query with no matching fund maps to
// shared.ErrNotFound; Alma answers the same way for funds the API key cannot
// see, such as overexpended funds.
func (c *Client) GetFund(ctx context.Context, fundCode string) (*feed.FundRecord, error) {
	query := url.Values{
		"q":    {"fund_code~" + fundCode},
		"view": {"full"},
	}
	var page fundList
	if err := c.get(ctx, "/acq/funds", query, &page); err != nil {
		return nil, fmt.Errorf("retrieving fund %s: %w", fundCode, err)
	}
	if page.TotalRecordCount == 0 || len(page.Fund) == 0 {
		return nil, fmt.Errorf("fund %s: %w", fundCode, shared.ErrNotFound)
	}
	return &feed.FundRecord{
		Code:       page.Fund[0].Code,
		ExternalID: page.Fund[0].ExternalID,
	}, nil
}

// MarkPaid posts the paid operation for an invoice with the voucher data AP
// expects on the payment record.
func (c *Client) MarkPaid(ctx context.Context, invoiceID string, paidAt time.Time, amount valueobject.Money) error {
	body := invoicePayload{
		Payment: paymentStatus{
			PaymentStatus:   codeValue{Value: "PAID"},
			VoucherDate:     paidAt.Format(invoiceDateLayout),
			VoucherAmount:   amount.Amount().StringFixed(2),
			VoucherCurrency: codeValue{Value: string(amount.Currency())},
		},
	}
	query := url.Values{"op": {"paid"}}
	var updated invoicePayload
	if err := c.post(ctx, "/acq/invoices/"+url.PathEscape(invoiceID), query, body, &updated); err != nil {
		return fmt.Errorf("marking invoice %s paid: %w", invoiceID, err)
	}
	if updated.Payment.PaymentStatus.Value != "PAID" {
		return fmt.Errorf("invoice %s payment status is %q after paid operation",
			invoiceID, updated.Payment.PaymentStatus.Value)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, query, payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	operation := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "apikey "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(shared.ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.logger.Warn("retryable alma response",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", resp.StatusCode))
			return fmt.Errorf("alma responded %d: %w", resp.StatusCode, shared.ErrTransientFetch)
		case resp.StatusCode >= 400:
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return backoff.Permanent(fmt.Errorf("alma responded %d: %s", resp.StatusCode, detail))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding alma response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(operation, policy)
}

func mapInvoice(payload invoicePayload) (feed.InvoiceRecord, error) {
	date, err := time.Parse(invoiceDateLayout, payload.InvoiceDate)
	if err != nil {
		return feed.InvoiceRecord{}, fmt.Errorf("invoice %s has unparseable date %q: %w",
			payload.ID, payload.InvoiceDate, err)
	}
	record := feed.InvoiceRecord{
		ID:            payload.ID,
		Number:        payload.Number,
		Date:          date,
		VendorCode:    payload.Vendor.Value,
		PaymentMethod: payload.PaymentMethod.Value,
		Currency:      payload.Currency.Value,
		TotalAmount:   decimal.NewFromFloat(payload.TotalAmount),
	}
	for _, line := range payload.InvoiceLines.InvoiceLine {
		for _, dist := range line.FundDistribution {
			record.Lines = append(record.Lines, feed.FundDistribution{
				FundCode: dist.FundCode.Value,
				Amount:   decimal.NewFromFloat(dist.Amount),
			})
		}
	}
	return record, nil
}

// selectPaymentAddress prefers the address flagged for payment use and falls
// back to the vendor's first address. Addresses with no country get the
// domestic default.
func selectPaymentAddress(addresses []vendorAddress) invoice.Address {
	if len(addresses) == 0 {
		return invoice.Address{}
	}
	selected := addresses[0]
search:
	for _, addr := range addresses {
		for _, addrType := range addr.AddressType {
			if addrType.Value == "payment" {
				selected = addr
				break search
			}
		}
	}
	country := selected.Country.Value
	if country == "" {
		country = defaultCountry
	}
	var lines []string
	for _, line := range []string{selected.Line1, selected.Line2, selected.Line3, selected.Line4, selected.Line5} {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return invoice.Address{
		Lines:         lines,
		City:          selected.City,
		StateProvince: selected.StateProvince,
		PostalCode:    selected.PostalCode,
		CountryCode:   country,
	}
}
