package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutSchedule 自动打款周期
type PayoutSchedule string

const (
	ScheduleDaily   PayoutSchedule = "daily"
	ScheduleWeekly  PayoutSchedule = "weekly"
	ScheduleMonthly PayoutSchedule = "monthly"
)

// PlatformAccount 平台收款账户及自动打款配置
// 同一时刻最多一个 is_primary = true (迁移中有部分唯一索引)
type PlatformAccount struct {
	ID                  string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name                string          `gorm:"type:varchar(128);not null" json:"name"`
	ProcessorAccountID  string          `gorm:"type:varchar(64)" json:"processor_account_id"`
	IsPrimary           bool            `gorm:"not null;default:false;uniqueIndex:idx_platform_accounts_single_primary,where:is_primary" json:"is_primary"`
	IsActive            bool            `gorm:"not null;default:true" json:"is_active"`
	AutoPayoutEnabled   bool            `gorm:"not null;default:false" json:"auto_payout_enabled"`
	PayoutSchedule      PayoutSchedule  `gorm:"type:varchar(16);not null;default:'monthly'" json:"payout_schedule"`
	PayoutDay           int             `gorm:"not null;default:1" json:"payout_day"`
	MinimumPayoutAmount decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"minimum_payout_amount"`
	Currency            string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (PlatformAccount) TableName() string {
	return "platform_accounts"
}

// PlatformBalance 平台资金汇总
// Available: 平台自有 (手续费)；Reserved: 待付创作者；Pending: 已申请未结算的人工打款
type PlatformBalance struct {
	PlatformAccountID  string          `gorm:"type:varchar(36);primaryKey" json:"platform_account_id"`
	Available          decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"available"`
	Pending            decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"pending"`
	Reserved           decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"reserved"`
	TotalFeesCollected decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"total_fees_collected"`
	TotalPayoutsMade   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"total_payouts_made"`
	Currency           string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (PlatformBalance) TableName() string {
	return "platform_balances"
}

// PlatformFeeConfig 平台抽成比例 (0-100)，同一时刻只有一条 active
type PlatformFeeConfig struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Percentage    decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"percentage"`
	IsActive      bool            `gorm:"not null;default:true;index" json:"is_active"`
	EffectiveFrom time.Time       `gorm:"not null" json:"effective_from"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (PlatformFeeConfig) TableName() string {
	return "platform_fee_configs"
}
