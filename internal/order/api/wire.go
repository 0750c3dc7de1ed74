package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// envelope is the standard business API response wrapper.
type envelope[T any] struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    T               `json:"data"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// flexFloat decodes a JSON number or a numeric string. Decimal columns are
// serialized as strings by the backend.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexString decodes a JSON string or number into its string form.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexTime decodes RFC 3339 timestamps and the backend's
// "2006-01-02 15:04:05" form, which is UTC.
type flexTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02 15:04:05",
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// --- pricing ---

type wirePreview struct {
	Index      int       `json:"index"`
	Count      int       `json:"count"`
	Currency   string    `json:"currency"`
	UnitPrice  flexFloat `json:"unit_price"`
	TotalPrice flexFloat `json:"total_price"`
}

type wirePricing struct {
	Previews   []wirePreview `json:"previews"`
	Currency   string        `json:"currency"`
	GrandTotal flexFloat     `json:"grand_total"`
}

func (w wirePricing) toDomain() domain.PricingPreview {
	p := domain.PricingPreview{
		Bundles:    make([]domain.BundlePrice, 0, len(w.Previews)),
		Currency:   w.Currency,
		GrandTotal: float64(w.GrandTotal),
	}
	for _, e := range w.Previews {
		currency := e.Currency
		if currency == "" {
			currency = w.Currency
		}
		p.Bundles = append(p.Bundles, domain.BundlePrice{
			Index:      e.Index,
			Count:      e.Count,
			Currency:   currency,
			UnitPrice:  float64(e.UnitPrice),
			TotalPrice: float64(e.TotalPrice),
		})
	}
	return p
}

// --- submission ---

type wireCharges struct {
	BaseAmount    flexFloat `json:"base_amount"`
	PercentageFee flexFloat `json:"percentage_fee"`
	FlatFee       flexFloat `json:"flat_fee"`
	TotalFees     flexFloat `json:"total_fees"`
	GrandTotal    flexFloat `json:"grand_total"`
	Currency      string    `json:"currency"`
}

type wireBank struct {
	AccountName   string     `json:"account_name"`
	AccountNumber flexString `json:"account_number"`
	BankName      string     `json:"bank_name"`
}

type wireGatewayOption struct {
	ID                   flexString  `json:"id"`
	Gateway              string      `json:"gateway"`
	Name                 string      `json:"name"`
	PaymentType          string      `json:"payment_type"`
	Charges              wireCharges `json:"charge_breakdown"`
	TransactionReference string      `json:"transaction_reference"`
	Bank                 *wireBank   `json:"bank_details"`
}

func (w wireGatewayOption) toDomain() domain.PaymentGatewayOption {
	name := w.Gateway
	if name == "" {
		name = w.Name
	}
	opt := domain.PaymentGatewayOption{
		ID:          string(w.ID),
		Gateway:     name,
		PaymentType: domain.PaymentType(strings.ToLower(w.PaymentType)),
		Charges: domain.ChargeBreakdown{
			BaseAmount:    float64(w.Charges.BaseAmount),
			PercentageFee: float64(w.Charges.PercentageFee),
			FlatFee:       float64(w.Charges.FlatFee),
			TotalFees:     float64(w.Charges.TotalFees),
			GrandTotal:    float64(w.Charges.GrandTotal),
			Currency:      w.Charges.Currency,
		},
		TransactionReference: w.TransactionReference,
	}
	if w.Bank != nil {
		opt.Bank = &domain.BankDetails{
			AccountName:   w.Bank.AccountName,
			AccountNumber: string(w.Bank.AccountNumber),
			BankName:      w.Bank.BankName,
		}
	}
	return opt
}

func gatewayOptions(in []wireGatewayOption) []domain.PaymentGatewayOption {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.PaymentGatewayOption, 0, len(in))
	for _, o := range in {
		out = append(out, o.toDomain())
	}
	return out
}

type wireTransaction struct {
	ID         flexString `json:"id"`
	Identifier string     `json:"identifier"`
	Reference  string     `json:"reference"`
	Amount     flexFloat  `json:"amount"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	ExpiresAt  flexTime   `json:"expires_at"`
}

type wireInstance struct {
	ID         flexString `json:"id"`
	Identifier string     `json:"identifier"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
}

type wirePayment struct {
	Required       bool                `json:"required"`
	ExpiresAt      flexTime            `json:"expires_at"`
	GatewayOptions []wireGatewayOption `json:"payment_gateway_options"`
}

type wireOrder struct {
	ID       flexString `json:"id"`
	Total    flexFloat  `json:"total"`
	Currency string     `json:"currency"`
}

type wireOrderItem struct {
	Description string    `json:"description"`
	Name        string    `json:"name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   flexFloat `json:"unit_price"`
	Total       flexFloat `json:"total"`
}

type wireBreakdown struct {
	Subtotal flexFloat `json:"subtotal"`
	Discount flexFloat `json:"discount"`
	Tax      flexFloat `json:"tax"`
	Total    flexFloat `json:"total"`
	Currency string    `json:"currency"`
}

type wireSubmission struct {
	Transaction        *wireTransaction `json:"transaction"`
	Instances          []wireInstance   `json:"instances"`
	Payment            wirePayment      `json:"payment"`
	Order              wireOrder        `json:"order"`
	OrderItems         []wireOrderItem  `json:"order_items"`
	PricingBreakdown   wireBreakdown    `json:"pricing_breakdown"`
	FastTrackCompleted bool             `json:"fast_track_completed"`
}

func (w wireSubmission) instances() []domain.InstanceStub {
	if len(w.Instances) == 0 {
		return nil
	}
	out := make([]domain.InstanceStub, 0, len(w.Instances))
	for _, i := range w.Instances {
		id := string(i.ID)
		if i.Identifier != "" {
			id = i.Identifier
		}
		out = append(out, domain.InstanceStub{ID: id, Name: i.Name, Status: i.Status})
	}
	return out
}

// transaction assembles the domain transaction from the submission data.
// The payment block's expiry wins over the transaction's own field.
func (w wireSubmission) transaction() *domain.Transaction {
	if w.Transaction == nil {
		return nil
	}
	t := w.Transaction
	tx := &domain.Transaction{
		ID:             string(t.ID),
		Reference:      t.Reference,
		Amount:         float64(t.Amount),
		Currency:       t.Currency,
		Status:         domain.TransactionStatus(strings.ToLower(t.Status)),
		ExpiresAt:      t.ExpiresAt.Time,
		GatewayOptions: gatewayOptions(w.Payment.GatewayOptions),
		Instances:      w.instances(),
	}
	if tx.ID == "" {
		tx.ID = t.Identifier
	}
	if tx.Status == "" {
		tx.Status = domain.StatusPending
	}
	if !w.Payment.ExpiresAt.IsZero() {
		tx.ExpiresAt = w.Payment.ExpiresAt.Time
	}

	tx.Order = domain.OrderSummary{
		ID:       string(w.Order.ID),
		Discount: float64(w.PricingBreakdown.Discount),
		Tax:      float64(w.PricingBreakdown.Tax),
		Total:    float64(w.PricingBreakdown.Total),
		Currency: w.PricingBreakdown.Currency,
	}
	if tx.Order.Total == 0 {
		tx.Order.Total = float64(w.Order.Total)
	}
	if tx.Order.Currency == "" {
		tx.Order.Currency = w.Order.Currency
	}
	for _, item := range w.OrderItems {
		desc := item.Description
		if desc == "" {
			desc = item.Name
		}
		tx.Order.LineItems = append(tx.Order.LineItems, domain.LineItem{
			Description: desc,
			Quantity:    item.Quantity,
			UnitPrice:   float64(item.UnitPrice),
			Total:       float64(item.Total),
		})
	}
	return tx
}

// --- status ---

type wireStatus struct {
	ID             flexString          `json:"id"`
	TransactionID  flexString          `json:"transaction_id"`
	Status         string              `json:"status"`
	Amount         flexFloat           `json:"amount"`
	Currency       string              `json:"currency"`
	ExpiresAt      flexTime            `json:"expires_at"`
	GatewayOptions []wireGatewayOption `json:"payment_gateway_options"`
}

func (w wireStatus) toDomain(id string) domain.StatusReport {
	r := domain.StatusReport{
		TransactionID:  id,
		Status:         domain.TransactionStatus(strings.ToLower(strings.TrimSpace(w.Status))),
		Amount:         float64(w.Amount),
		Currency:       w.Currency,
		ExpiresAt:      w.ExpiresAt.Time,
		GatewayOptions: gatewayOptions(w.GatewayOptions),
	}
	return r
}
