// Package gateway chooses among the payment routes offered for a
// transaction and hands card payments to an external checkout.
package gateway

import (
	"fmt"
	"math"
	"strings"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// DefaultPreferred is the processor preferred when none is configured.
const DefaultPreferred = "paystack"

// Selector picks gateway options. It never modifies the options it is
// given and never recomputes their amounts.
type Selector struct {
	preferred string
}

// NewSelector returns a Selector preferring card options whose gateway
// name contains preferred, case-insensitively.
func NewSelector(preferred string) Selector {
	preferred = strings.TrimSpace(preferred)
	if preferred == "" {
		preferred = DefaultPreferred
	}
	return Selector{preferred: strings.ToLower(preferred)}
}

// Preferred returns the normalized preferred-gateway token.
func (s Selector) Preferred() string {
	return s.preferred
}

// SelectDefault returns the first card option of the preferred processor,
// falling back to the first option. ok is false when options is empty.
func (s Selector) SelectDefault(options []domain.PaymentGatewayOption) (domain.PaymentGatewayOption, bool) {
	if len(options) == 0 {
		return domain.PaymentGatewayOption{}, false
	}
	for _, o := range options {
		if o.PaymentType == domain.PaymentCard && strings.Contains(strings.ToLower(o.Gateway), s.preferred) {
			return o, true
		}
	}
	return options[0], true
}

// Select returns the option whose Key matches key.
func Select(options []domain.PaymentGatewayOption, key string) (domain.PaymentGatewayOption, error) {
	for _, o := range options {
		if o.Key() == key {
			return o, nil
		}
	}
	return domain.PaymentGatewayOption{}, fmt.Errorf("gateway option %q: %w", key, domain.ErrNotFound)
}

// MinorUnits converts an amount to the smallest currency unit (kobo, cents)
// for the checkout. A non-positive result aborts the payment attempt.
func MinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidAmount, amount)
	}
	minor := int64(math.Round(amount * 100))
	if minor <= 0 {
		return 0, fmt.Errorf("%w: %.2f", domain.ErrInvalidAmount, amount)
	}
	return minor, nil
}
