package domain

// BundlePrice is the quoted price of one bundle.
type BundlePrice struct {
	Index      int     `json:"index"`
	Count      int     `json:"count"`
	Currency   string  `json:"currency"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// PricingPreview is a derived quote over a whole batch of bundles. It is
// recomputed on demand and becomes stale when any bundle changes.
type PricingPreview struct {
	Bundles    []BundlePrice `json:"previews"`
	Currency   string        `json:"currency"`
	GrandTotal float64       `json:"grand_total"`
}
