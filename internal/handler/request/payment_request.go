package request

import "github.com/shopspring/decimal"

type SubscriptionPaymentRequest struct {
	SubscriptionID    string          `json:"subscription_id" binding:"required"`
	CreatorID         string          `json:"creator_id"`
	GrossAmount       decimal.Decimal `json:"gross_amount" binding:"required,dgt0"`
	Currency          string          `json:"currency" binding:"omitempty,len=3"`
	PaymentMethod     string          `json:"payment_method"`
	ExternalPaymentID string          `json:"external_payment_id"`
}

type PaymentIntentRequest struct {
	SubscriptionID string            `json:"subscription_id" binding:"required"`
	Amount         decimal.Decimal   `json:"amount" binding:"required,dgt0"`
	Currency       string            `json:"currency" binding:"required,len=3"`
	CustomerID     string            `json:"customer_id"`
	Metadata       map[string]string `json:"metadata"`
}
