package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatorWallet 创作者钱包，每个创作者最多一个
// 不变量: balance, pending_balance >= 0；
// balance + pending_balance == 该钱包所有 WalletTransaction.amount 之和
type CreatorWallet struct {
	ID              string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatorID       string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"creator_id"`
	Balance         decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"balance"`
	PendingBalance  decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"pending_balance"`
	TotalEarned     decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"total_earned"`
	TotalWithdrawn  decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"total_withdrawn"`
	Currency        string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	PayoutMethod    *PayoutMethod   `gorm:"type:jsonb" json:"payout_method,omitempty"`
	StripeAccountID *string         `gorm:"type:varchar(64)" json:"stripe_account_id,omitempty"`
	IsActive        bool            `gorm:"not null;default:true;index" json:"is_active"`
	Version         uint64          `gorm:"not null;default:0" json:"version"` // 每次余额变动 +1
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (CreatorWallet) TableName() string {
	return "creator_wallets"
}

// HasStripeAccount 是否已绑定 Stripe Connect 账号
func (w *CreatorWallet) HasStripeAccount() bool {
	return w.StripeAccountID != nil && *w.StripeAccountID != ""
}

// TransactionType 账本流水类型
type TransactionType string

const (
	TransactionSubscriptionPayment TransactionType = "subscription_payment"
	TransactionPayout              TransactionType = "payout"
	TransactionAdjustment          TransactionType = "adjustment"
)

// WalletTransaction 钱包流水，只插入不修改
// Amount 带符号: 入账为正，打款为负
type WalletTransaction struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	WalletID    string          `gorm:"type:varchar(36);not null;index:idx_wallet_tx_created,priority:1" json:"wallet_id"`
	Type        TransactionType `gorm:"type:varchar(32);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Status      string          `gorm:"type:varchar(16);not null;default:'completed'" json:"status"`
	Reference   string          `gorm:"type:varchar(128);not null;uniqueIndex" json:"reference"`
	Description string          `gorm:"type:varchar(255)" json:"description"`
	Metadata    Metadata        `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time       `gorm:"index:idx_wallet_tx_created,priority:2" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// PaymentSplit 一笔订阅付款的平台费拆分记录 (报表 / 平台收入统计)
type PaymentSplit struct {
	ID                string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	WalletID          string          `gorm:"type:varchar(36);not null;index" json:"wallet_id"`
	CreatorID         string          `gorm:"type:varchar(64);not null" json:"creator_id"`
	SubscriptionID    string          `gorm:"type:varchar(64);not null;index" json:"subscription_id"`
	ExternalPaymentID *string         `gorm:"type:varchar(128);uniqueIndex" json:"external_payment_id,omitempty"`
	Currency          string          `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentMethod     string          `gorm:"type:varchar(32)" json:"payment_method"`
	GrossAmount       decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"gross_amount"`
	FeePercentage     decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"fee_percentage"`
	PlatformFee       decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"platform_fee"`
	CreatorAmount     decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"creator_amount"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
}

func (PaymentSplit) TableName() string {
	return "payment_splits"
}
