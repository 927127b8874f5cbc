package request

import (
	"github.com/shopspring/decimal"

	"payout-core/internal/model"
)

type CreateWalletRequest struct {
	CreatorID string `json:"creator_id" binding:"required"`
}

type PayoutMethodRequest struct {
	Type               string `json:"type" binding:"required,oneof=stripe_connect bank_transfer paypal"`
	StripeAccountID    string `json:"stripe_account_id"`
	BankName           string `json:"bank_name"`
	AccountHolder      string `json:"account_holder"`
	AccountNumberLast4 string `json:"account_number_last4" binding:"omitempty,len=4,numeric"`
	RoutingNumber      string `json:"routing_number"`
	PaypalEmail        string `json:"paypal_email" binding:"omitempty,email"`
}

func (r *PayoutMethodRequest) ToModel() *model.PayoutMethod {
	if r == nil {
		return nil
	}
	return &model.PayoutMethod{
		Type:               model.PayoutMethodType(r.Type),
		StripeAccountID:    r.StripeAccountID,
		BankName:           r.BankName,
		AccountHolder:      r.AccountHolder,
		AccountNumberLast4: r.AccountNumberLast4,
		RoutingNumber:      r.RoutingNumber,
		PaypalEmail:        r.PaypalEmail,
	}
}

type RequestPayoutRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,dgt0"`
	// 为空时使用钱包上的收款方式
	Method *PayoutMethodRequest `json:"method"`
}

// DateRangeQuery ?start=2026-03-01&end=2026-03-31，end 包含当天
type DateRangeQuery struct {
	Start string `form:"start" binding:"omitempty,datetime=2006-01-02"`
	End   string `form:"end" binding:"omitempty,datetime=2006-01-02"`
}
