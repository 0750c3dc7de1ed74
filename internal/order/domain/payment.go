package domain

import "math"

// PaymentType is the kind of route a gateway option offers.
type PaymentType string

const (
	PaymentCard     PaymentType = "card"
	PaymentTransfer PaymentType = "transfer"
)

// feeTolerance bounds the floating-point drift accepted between the server's
// grand total and the sum of its parts.
const feeTolerance = 0.01

// ChargeBreakdown is the server-computed fee decomposition of one gateway
// option. The client displays these figures and never recomputes them.
type ChargeBreakdown struct {
	BaseAmount    float64 `json:"base_amount"`
	PercentageFee float64 `json:"percentage_fee"`
	FlatFee       float64 `json:"flat_fee"`
	TotalFees     float64 `json:"total_fees"`
	GrandTotal    float64 `json:"grand_total"`
	Currency      string  `json:"currency"`
}

// Consistent reports whether the grand total equals the base amount plus
// both fee components within tolerance.
func (c ChargeBreakdown) Consistent() bool {
	sum := c.BaseAmount + c.PercentageFee + c.FlatFee
	if math.Abs(c.GrandTotal-sum) > feeTolerance {
		return false
	}
	return math.Abs(c.TotalFees-(c.PercentageFee+c.FlatFee)) <= feeTolerance
}

// BankDetails are the transfer instructions of a transfer gateway option.
type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
}

// PaymentGatewayOption is one payment route offered for a transaction.
type PaymentGatewayOption struct {
	ID                   string          `json:"id,omitempty"`
	Gateway              string          `json:"gateway"`
	PaymentType          PaymentType     `json:"payment_type"`
	Charges              ChargeBreakdown `json:"charge_breakdown"`
	TransactionReference string          `json:"transaction_reference"`
	Bank                 *BankDetails    `json:"bank_details,omitempty"`
}

// Key identifies the option within its transaction. Options without a
// server ID are keyed by gateway and payment type.
func (o PaymentGatewayOption) Key() string {
	if o.ID != "" {
		return o.ID
	}
	return o.Gateway + ":" + string(o.PaymentType)
}

// IsTransfer reports whether the option is a bank transfer.
func (o PaymentGatewayOption) IsTransfer() bool {
	return o.PaymentType == PaymentTransfer
}
