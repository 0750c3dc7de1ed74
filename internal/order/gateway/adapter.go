package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/browser"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// OutcomeKind is how an external checkout ended.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeCancel  OutcomeKind = "cancel"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the result reported by a checkout.
type Outcome struct {
	Kind      OutcomeKind
	Reference string
	Err       error
}

// Success reports a completed checkout for reference.
func Success(reference string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Reference: reference}
}

// Cancel reports that the payer abandoned the checkout.
func Cancel() Outcome {
	return Outcome{Kind: OutcomeCancel}
}

// Failure reports a checkout that could not complete.
func Failure(err error) Outcome {
	return Outcome{Kind: OutcomeError, Err: err}
}

// CheckoutRequest parameterizes a card checkout.
type CheckoutRequest struct {
	TransactionID string
	Reference     string
	AmountMinor   int64
	Currency      string
	Gateway       string
}

// NewCheckoutRequest builds the checkout parameters for option. The
// option's grand total is converted to minor units; a non-positive amount
// fails with domain.ErrInvalidAmount.
func NewCheckoutRequest(tx domain.Transaction, option domain.PaymentGatewayOption) (CheckoutRequest, error) {
	if option.TransactionReference == "" {
		return CheckoutRequest{}, fmt.Errorf("gateway %s: missing transaction reference", option.Gateway)
	}
	minor, err := MinorUnits(option.Charges.GrandTotal)
	if err != nil {
		return CheckoutRequest{}, err
	}
	currency := option.Charges.Currency
	if currency == "" {
		currency = tx.Currency
	}
	return CheckoutRequest{
		TransactionID: tx.ID,
		Reference:     option.TransactionReference,
		AmountMinor:   minor,
		Currency:      currency,
		Gateway:       option.Gateway,
	}, nil
}

// Adapter runs a card checkout outside this program and reports how it
// ended. Implementations must not change the transaction; the poller
// observes the result.
type Adapter interface {
	Checkout(ctx context.Context, req CheckoutRequest) Outcome
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, req CheckoutRequest) Outcome

// Checkout calls f.
func (f AdapterFunc) Checkout(ctx context.Context, req CheckoutRequest) Outcome {
	return f(ctx, req)
}

// ErrNoCheckoutURL is returned when no hosted checkout is configured.
var ErrNoCheckoutURL = errors.New("no checkout url configured (run 'vpsorder config set checkout-url <url>')")

// BrowserAdapter opens a hosted checkout page in the default browser.
//
// CheckoutURL may contain the placeholders {reference}, {amount} and
// {currency}; without placeholders the values are appended as query
// parameters.
type BrowserAdapter struct {
	CheckoutURL string

	// Confirm asks the payer how the checkout ended once the page is open.
	// When nil, opening the page counts as success and the status read
	// decides the real outcome.
	Confirm func(ctx context.Context, req CheckoutRequest) (bool, error)

	// Open launches url. It defaults to browser.OpenURL.
	Open func(url string) error

	// Output receives the browser launcher's own output. Nil discards it.
	Output io.Writer
}

// Checkout implements Adapter.
func (b BrowserAdapter) Checkout(ctx context.Context, req CheckoutRequest) Outcome {
	target, err := b.URL(req)
	if err != nil {
		return Failure(err)
	}

	open := b.Open
	if open == nil {
		out := b.Output
		if out == nil {
			out = io.Discard
		}
		browser.Stdout = out
		browser.Stderr = out
		open = browser.OpenURL
	}
	if err := open(target); err != nil {
		return Failure(fmt.Errorf("failed to open checkout: %w", err))
	}

	if b.Confirm == nil {
		return Success(req.Reference)
	}
	ok, err := b.Confirm(ctx, req)
	switch {
	case err != nil:
		return Failure(err)
	case !ok:
		return Cancel()
	default:
		return Success(req.Reference)
	}
}

// URL renders the checkout URL for req.
func (b BrowserAdapter) URL(req CheckoutRequest) (string, error) {
	raw := strings.TrimSpace(b.CheckoutURL)
	if raw == "" {
		return "", ErrNoCheckoutURL
	}

	amount := strconv.FormatInt(req.AmountMinor, 10)
	if strings.Contains(raw, "{") {
		r := strings.NewReplacer(
			"{reference}", url.PathEscape(req.Reference),
			"{amount}", amount,
			"{currency}", url.QueryEscape(req.Currency),
		)
		raw = r.Replace(raw)
		if _, err := url.Parse(raw); err != nil {
			return "", fmt.Errorf("invalid checkout url: %w", err)
		}
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid checkout url: %w", err)
	}
	q := u.Query()
	q.Set("reference", req.Reference)
	q.Set("amount", amount)
	if req.Currency != "" {
		q.Set("currency", req.Currency)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
