package appstore

// verifyReceipt status codes. Zero means the receipt is valid;
// statusSandboxReceipt means a sandbox receipt was posted to the
// production endpoint and should be re-verified against sandbox.
const (
	statusOK                  = 0
	statusSandboxReceipt      = 21007
	statusProdReceipt         = 21008
	statusServerUnavail       = 21005
	statusSubscriptionExpired = 21006
)

type verifyRequest struct {
	ReceiptData string `json:"receipt-data"`
	Password    string `json:"password,omitempty"`
}

type verifyResponse struct {
	Status             int              `json:"status"`
	Environment        string           `json:"environment"`
	LatestReceiptInfo  []receiptInfo    `json:"latest_receipt_info"`
	PendingRenewalInfo []pendingRenewal `json:"pending_renewal_info"`
	Receipt            map[string]any   `json:"receipt"`
}

type receiptInfo struct {
	ProductID             string `json:"product_id"`
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	PurchaseDateMS        string `json:"purchase_date_ms"`
	ExpiresDateMS         string `json:"expires_date_ms"`
}

type pendingRenewal struct {
	ProductID       string `json:"product_id"`
	AutoRenewStatus string `json:"auto_renew_status"`
}
