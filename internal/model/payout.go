package model

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutRequestStatus 单笔打款状态: pending -> processing -> completed | failed，只能前进
type PayoutRequestStatus string

const (
	PayoutRequestPending    PayoutRequestStatus = "pending"
	PayoutRequestProcessing PayoutRequestStatus = "processing"
	PayoutRequestCompleted  PayoutRequestStatus = "completed"
	PayoutRequestFailed     PayoutRequestStatus = "failed"
)

// IsTerminal completed / failed 后不可再变更
func (s PayoutRequestStatus) IsTerminal() bool {
	return s == PayoutRequestCompleted || s == PayoutRequestFailed
}

// PayoutRequest 单个创作者的一次打款
type PayoutRequest struct {
	ID               string              `gorm:"type:varchar(36);primaryKey" json:"id"`
	WalletID         string              `gorm:"type:varchar(36);not null;index" json:"wallet_id"`
	CreatorID        string              `gorm:"type:varchar(64);not null;index:idx_payout_lineage_creator,priority:2" json:"creator_id"`
	JobID            *string             `gorm:"type:varchar(36);index" json:"job_id,omitempty"`
	LineageID        *string             `gorm:"type:varchar(36);index:idx_payout_lineage_creator,priority:1" json:"lineage_id,omitempty"`
	Amount           decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"amount"`
	Currency         string              `gorm:"type:varchar(3);not null" json:"currency"`
	PayoutMethod     PayoutMethod        `gorm:"type:jsonb;not null" json:"payout_method"`
	Status           PayoutRequestStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	ExternalPayoutID *string             `gorm:"type:varchar(128)" json:"external_payout_id,omitempty"`
	IdempotencyKey   string              `gorm:"type:varchar(160);not null;uniqueIndex" json:"idempotency_key"`
	FailureReason    string              `gorm:"type:text" json:"failure_reason,omitempty"`
	RequestedAt      time.Time           `gorm:"not null" json:"requested_at"`
	ProcessedAt      *time.Time          `json:"processed_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (PayoutRequest) TableName() string {
	return "payout_requests"
}

// JobStatus 批量打款任务状态
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobCreator 任务快照中的一个创作者 (创建任务时冻结金额与收款方式)
type JobCreator struct {
	CreatorID    string          `json:"creator_id"`
	WalletID     string          `json:"wallet_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	PayoutMethod PayoutMethod    `json:"payout_method"`
	Status       string          `json:"status,omitempty"` // "" | completed | pending | failed
	RequestID    string          `json:"request_id,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// JobCreators jsonb 数组
type JobCreators []JobCreator

func (c *JobCreators) Scan(value interface{}) error { return scanJSON(value, c) }

func (c JobCreators) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	return valueJSON([]JobCreator(c))
}

// Clone 深拷贝，快照在内存中也不能被共享修改
func (c JobCreators) Clone() JobCreators {
	if c == nil {
		return nil
	}
	out := make(JobCreators, len(c))
	copy(out, c)
	return out
}

// JobError 单个创作者的失败原因
type JobError struct {
	CreatorID string `json:"creator_id"`
	Error     string `json:"error"`
}

// JobErrors jsonb 数组
type JobErrors []JobError

func (e *JobErrors) Scan(value interface{}) error { return scanJSON(value, e) }

func (e JobErrors) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	return valueJSON([]JobError(e))
}

// PayoutJob 批量打款任务
// LineageID 为根任务 ID；重试产生的子任务共享同一个 LineageID，Attempt 递增
type PayoutJob struct {
	ID                string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	ScheduledDate     time.Time       `gorm:"not null;index" json:"scheduled_date"`
	Status            JobStatus       `gorm:"type:varchar(16);not null;index" json:"status"`
	MinimumAmount     decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"minimum_amount"`
	TotalCreators     int             `gorm:"not null" json:"total_creators"`
	TotalAmount       decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_amount"`
	SuccessfulPayouts int             `gorm:"not null;default:0" json:"successful_payouts"`
	FailedPayouts     int             `gorm:"not null;default:0" json:"failed_payouts"`
	Creators          JobCreators     `gorm:"type:jsonb;not null" json:"creators"`
	Errors            JobErrors       `gorm:"type:jsonb" json:"errors,omitempty"`
	ParentJobID       *string         `gorm:"type:varchar(36);index" json:"parent_job_id,omitempty"`
	LineageID         string          `gorm:"type:varchar(36);not null;index" json:"lineage_id"`
	Attempt           int             `gorm:"not null;default:1" json:"attempt"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (PayoutJob) TableName() string {
	return "payout_jobs"
}
