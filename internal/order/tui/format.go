package tui

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

var printer = message.NewPrinter(language.English)

// FormatMoney renders an amount with thousands separators, e.g.
// "NGN 10,250.00". Amounts are shown exactly as the backend sent them.
func FormatMoney(amount float64, currency string) string {
	s := printer.Sprintf("%.2f", amount)
	if currency == "" {
		return s
	}
	return currency + " " + s
}

// FormatRemaining renders a countdown as m:ss or h:mm:ss. A negative
// duration means the transaction has no deadline.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		return "no deadline"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// GatewayLabel describes an option in one line, e.g. "Paystack (card)".
func GatewayLabel(opt domain.PaymentGatewayOption) string {
	name := opt.Gateway
	if name == "" {
		name = opt.ID
	}
	if opt.PaymentType == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, opt.PaymentType)
}

// ChargeLines lists the fee breakdown of an option.
func ChargeLines(c domain.ChargeBreakdown) [][2]string {
	return [][2]string{
		{"Base amount", FormatMoney(c.BaseAmount, c.Currency)},
		{"Percentage fee", FormatMoney(c.PercentageFee, c.Currency)},
		{"Flat fee", FormatMoney(c.FlatFee, c.Currency)},
		{"Total fees", FormatMoney(c.TotalFees, c.Currency)},
		{"Grand total", FormatMoney(c.GrandTotal, c.Currency)},
	}
}

// BankLines lists transfer instructions, or nil without bank details.
func BankLines(opt domain.PaymentGatewayOption) [][2]string {
	if opt.Bank == nil {
		return nil
	}
	lines := [][2]string{
		{"Bank", opt.Bank.BankName},
		{"Account name", opt.Bank.AccountName},
		{"Account number", opt.Bank.AccountNumber},
	}
	if opt.TransactionReference != "" {
		lines = append(lines, [2]string{"Reference", opt.TransactionReference})
	}
	return lines
}

// BundleSummary is a one-line description of a bundle for lists.
func BundleSummary(b domain.ConfigurationBundle) string {
	loc := b.Region
	if loc == "" {
		loc = "project " + b.ProjectID
	}
	parts := []string{
		fmt.Sprintf("%s x%d", b.Name, b.Count),
		loc,
		"plan " + b.ComputeInstanceID,
		"image " + b.OSImageID,
		fmt.Sprintf("%d mo", b.Months),
	}
	if n := len(b.Volumes); n > 0 {
		total := 0
		for _, v := range b.Volumes {
			total += v.SizeGB
		}
		parts = append(parts, fmt.Sprintf("%d vol / %d GiB", n, total))
	}
	return strings.Join(parts, ", ")
}

// PreviewLines renders a pricing preview against its bundles.
func PreviewLines(bundles []domain.ConfigurationBundle, p *domain.PricingPreview) []string {
	if p == nil {
		return nil
	}
	lines := make([]string, 0, len(p.Bundles)+1)
	for _, bp := range p.Bundles {
		name := fmt.Sprintf("bundle %d", bp.Index)
		if bp.Index >= 0 && bp.Index < len(bundles) {
			name = bundles[bp.Index].Name
		}
		currency := bp.Currency
		if currency == "" {
			currency = p.Currency
		}
		lines = append(lines, fmt.Sprintf("%s x%d: %s each, %s",
			name, bp.Count, FormatMoney(bp.UnitPrice, currency), FormatMoney(bp.TotalPrice, currency)))
	}
	lines = append(lines, "Total: "+FormatMoney(p.GrandTotal, p.Currency))
	return lines
}
