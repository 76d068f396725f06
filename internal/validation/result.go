package validation

import "time"

// Result is the normalized outcome of validating a purchase artifact
// against a storefront. IsValid false means the platform positively
// determined the purchase is not payable; an inability to reach the
// platform is surfaced as an error instead, never as IsValid false.
type Result struct {
	IsValid       bool
	ProductID     string
	PurchaseToken string
	ExpiryDate    time.Time
	AutoRenewing  bool
}
