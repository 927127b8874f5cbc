package event

// Topics
const (
	TopicSubscriptionPaid  = "billing.subscription_paid"
	TopicWalletCredited    = "payout.wallet_credited"
	TopicPayoutCompleted   = "payout.completed"
	TopicPayoutFailed      = "payout.failed"
	TopicPayoutJobFinished = "payout.job_finalized"
)

// SubscriptionPaidEvent 计费系统发布的订阅付款事件
// Topic: billing.subscription_paid
type SubscriptionPaidEvent struct {
	SubscriptionID    string `json:"subscription_id"`
	CreatorID         string `json:"creator_id"`
	Amount            string `json:"amount"` // Decimal string
	Currency          string `json:"currency"`
	PaymentMethod     string `json:"payment_method"`
	ExternalPaymentID string `json:"external_payment_id"`
}

// WalletCreditedEvent 订阅付款入账
type WalletCreditedEvent struct {
	WalletID          string `json:"wallet_id"`
	CreatorID         string `json:"creator_id"`
	SubscriptionID    string `json:"subscription_id"`
	ExternalPaymentID string `json:"external_payment_id,omitempty"`
	GrossAmount       string `json:"gross_amount"`
	PlatformFee       string `json:"platform_fee"`
	CreatorAmount     string `json:"creator_amount"`
	Currency          string `json:"currency"`
}

// PayoutSettledEvent 单笔打款完成 / 失败
// Topic: payout.completed | payout.failed
type PayoutSettledEvent struct {
	PayoutRequestID  string `json:"payout_request_id"`
	WalletID         string `json:"wallet_id"`
	CreatorID        string `json:"creator_id"`
	JobID            string `json:"job_id,omitempty"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Method           string `json:"method"`
	Status           string `json:"status"`
	ExternalPayoutID string `json:"external_payout_id,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
}

// PayoutJobFinalizedEvent 批量任务结束
type PayoutJobFinalizedEvent struct {
	JobID             string `json:"job_id"`
	LineageID         string `json:"lineage_id"`
	Status            string `json:"status"`
	SuccessfulPayouts int    `json:"successful_payouts"`
	FailedPayouts     int    `json:"failed_payouts"`
	TotalAmount       string `json:"total_amount"`
}
