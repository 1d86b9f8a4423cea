package alma

// Wire types for the Alma acquisitions API. Only the fields the feed reads
// are mapped; everything else in the payload is ignored.

type codeValue struct {
	Value string `json:"value"`
	Desc  string `json:"desc,omitempty"`
}

type invoiceList struct {
	Invoice          []invoicePayload `json:"invoice"`
	TotalRecordCount int              `json:"total_record_count"`
}

type invoicePayload struct {
	ID            string        `json:"id"`
	Number        string        `json:"number"`
	InvoiceDate   string        `json:"invoice_date"`
	Vendor        codeValue     `json:"vendor"`
	PaymentMethod codeValue     `json:"payment_method"`
	Currency      codeValue     `json:"currency"`
	TotalAmount   float64       `json:"total_amount"`
	InvoiceLines  invoiceLines  `json:"invoice_lines"`
	Payment       paymentStatus `json:"payment"`
}

type invoiceLines struct {
	InvoiceLine []invoiceLine `json:"invoice_line"`
}

type invoiceLine struct {
	FundDistribution []fundDistribution `json:"fund_distribution"`
}

type fundDistribution struct {
	FundCode codeValue `json:"fund_code"`
	Amount   float64   `json:"amount"`
}

type paymentStatus struct {
	PaymentStatus   codeValue `json:"payment_status"`
	VoucherDate     string    `json:"voucher_date,omitempty"`
	VoucherAmount   string    `json:"voucher_amount,omitempty"`
	VoucherCurrency codeValue `json:"voucher_currency,omitempty"`
}

type vendorPayload struct {
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	ContactInfo contactInfo `json:"contact_info"`
}

type contactInfo struct {
	Address []vendorAddress `json:"address"`
}

type vendorAddress struct {
	Line1         string      `json:"line1"`
	Line2         string      `json:"line2"`
	Line3         string      `json:"line3"`
	Line4         string      `json:"line4"`
	Line5         string      `json:"line5"`
	City          string      `json:"city"`
	StateProvince string      `json:"state_province"`
	PostalCode    string      `json:"postal_code"`
	Country       codeValue   `json:"country"`
	AddressType   []codeValue `json:"address_type"`
}

type fundList struct {
	Fund             []fundPayload `json:"fund"`
	TotalRecordCount int           `json:"total_record_count"`
}

type fundPayload struct {
	Code       string `json:"code"`
	ExternalID string `json:"external_id"`
}
