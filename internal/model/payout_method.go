package model

import (
	"database/sql/driver"
	"errors"
	"strings"

	"payout-core/pkg/validator"
)

// PayoutMethodType 打款渠道
type PayoutMethodType string

const (
	PayoutMethodStripeConnect PayoutMethodType = "stripe_connect"
	PayoutMethodBankTransfer  PayoutMethodType = "bank_transfer"
	PayoutMethodPaypal        PayoutMethodType = "paypal"
)

var ErrInvalidPayoutMethod = errors.New("invalid payout method")

// PayoutMethod 创作者收款方式，按 Type 区分字段
// 只保存展示所需的信息，完整卡号不落库
type PayoutMethod struct {
	Type               PayoutMethodType `json:"type"`
	StripeAccountID    string           `json:"stripe_account_id,omitempty"`
	BankName           string           `json:"bank_name,omitempty"`
	AccountHolder      string           `json:"account_holder,omitempty"`
	AccountNumberLast4 string           `json:"account_number_last4,omitempty"`
	RoutingNumber      string           `json:"routing_number,omitempty"`
	PaypalEmail        string           `json:"paypal_email,omitempty"`
}

// Validate 校验各渠道必填字段
func (m *PayoutMethod) Validate() error {
	if m == nil {
		return ErrInvalidPayoutMethod
	}
	switch m.Type {
	case PayoutMethodStripeConnect:
		return nil // 账号以钱包上的 stripe_account_id 为准
	case PayoutMethodBankTransfer:
		if strings.TrimSpace(m.AccountHolder) == "" || len(m.AccountNumberLast4) != 4 {
			return errors.New("bank transfer requires account holder and last 4 digits")
		}
		return nil
	case PayoutMethodPaypal:
		// 只接受裸地址，"Name <addr>" 形式不行
		if err := validator.Var(m.PaypalEmail, "required,email"); err != nil {
			return errors.New("paypal requires a valid email")
		}
		return nil
	default:
		return ErrInvalidPayoutMethod
	}
}

// IsManual 需要人工线下完成的渠道
func (m PayoutMethod) IsManual() bool {
	return m.Type == PayoutMethodBankTransfer || m.Type == PayoutMethodPaypal
}

func (m *PayoutMethod) Scan(value interface{}) error { return scanJSON(value, m) }

func (m PayoutMethod) Value() (driver.Value, error) { return valueJSON(m) }
