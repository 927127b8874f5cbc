package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payout-core/internal/model"
)

// GormStore Postgres 实现
// 余额变动只用 "UPDATE ... SET x = x ± ?" 或 SELECT ... FOR UPDATE 后写回，全部在单事务内
type GormStore struct {
	db   *gorm.DB
	opts Options
}

func NewGormStore(db *gorm.DB, opts Options) *GormStore {
	return &GormStore{db: db, opts: opts}
}

var _ Store = (*GormStore)(nil)

// 并发插入同一 external_payment_id 时，后到的事务回滚后按重复处理
var errConcurrentDuplicate = errors.New("concurrent duplicate")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ---- wallets ----

func (s *GormStore) GetOrCreateWallet(ctx context.Context, creatorID, currency string) (*model.CreatorWallet, error) {
	if err := s.insertWalletIfMissing(s.db.WithContext(ctx), creatorID, currency); err != nil {
		return nil, err
	}
	return s.GetWalletByCreator(ctx, creatorID)
}

// insertWalletIfMissing INSERT ... ON CONFLICT (creator_id) DO NOTHING
func (s *GormStore) insertWalletIfMissing(tx *gorm.DB, creatorID, currency string) error {
	w := model.CreatorWallet{
		ID:             newID(),
		CreatorID:      creatorID,
		Balance:        decimal.Zero,
		PendingBalance: decimal.Zero,
		TotalEarned:    decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		Currency:       currency,
		IsActive:       true,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "creator_id"}},
		DoNothing: true,
	}).Create(&w).Error
	if err != nil && !isUniqueViolation(err) {
		return err
	}
	return nil
}

func (s *GormStore) GetWallet(ctx context.Context, walletID string) (*model.CreatorWallet, error) {
	var w model.CreatorWallet
	if err := s.db.WithContext(ctx).First(&w, "id = ?", walletID).Error; err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

func (s *GormStore) GetWalletByCreator(ctx context.Context, creatorID string) (*model.CreatorWallet, error) {
	var w model.CreatorWallet
	if err := s.db.WithContext(ctx).First(&w, "creator_id = ?", creatorID).Error; err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

func (s *GormStore) ListActiveWallets(ctx context.Context, minBalance decimal.Decimal) ([]model.CreatorWallet, error) {
	var wallets []model.CreatorWallet
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND balance >= ?", true, minBalance).
		Order("created_at ASC, id ASC").
		Find(&wallets).Error
	return wallets, err
}

func (s *GormStore) UpdateWalletPayoutMethod(ctx context.Context, walletID string, method *model.PayoutMethod, stripeAccountID *string) (*model.CreatorWallet, error) {
	updates := map[string]interface{}{
		"payout_method": method,
		"updated_at":    s.opts.now(),
	}
	if stripeAccountID != nil {
		updates["stripe_account_id"] = *stripeAccountID
	}
	res := s.db.WithContext(ctx).Model(&model.CreatorWallet{}).Where("id = ?", walletID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetWallet(ctx, walletID)
}

func (s *GormStore) DeactivateWallet(ctx context.Context, walletID string) error {
	res := s.db.WithContext(ctx).Model(&model.CreatorWallet{}).
		Where("id = ?", walletID).
		Updates(map[string]interface{}{"is_active": false, "updated_at": s.opts.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- ledger ----

func (s *GormStore) CreditSubscriptionPayment(ctx context.Context, in CreditInput) (*CreditOutcome, error) {
	if !in.Gross.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var out *CreditOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 重复投递直接返回
		if in.ExternalPaymentID != "" {
			dup, err := s.findCredit(tx, in.ExternalPaymentID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if dup != nil {
				out = dup
				return nil
			}
		}

		// 2. 钱包 (不存在则创建) 并加行锁
		if err := s.insertWalletIfMissing(tx, in.CreatorID, in.Currency); err != nil {
			return err
		}
		var wallet model.CreatorWallet
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&wallet, "creator_id = ?", in.CreatorID).Error; err != nil {
			return err
		}
		if !wallet.IsActive {
			return ErrWalletInactive
		}

		// 3. 平台费
		active, err := activeFee(tx)
		if err != nil {
			return err
		}
		now := s.opts.now()
		ps, wtx, err := buildCredit(in, &wallet, resolveFee(active, s.opts.DefaultFeePercentage), now)
		if err != nil {
			return err
		}

		// 4. 拆分记录 + 流水
		if err := tx.Create(&ps).Error; err != nil {
			if isUniqueViolation(err) {
				return errConcurrentDuplicate
			}
			return err
		}
		if err := tx.Create(&wtx).Error; err != nil {
			if isUniqueViolation(err) {
				return errConcurrentDuplicate
			}
			return err
		}

		// 5. 加余额
		if err := tx.Model(&model.CreatorWallet{}).Where("id = ?", wallet.ID).Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", ps.CreatorAmount),
			"total_earned": gorm.Expr("total_earned + ?", ps.CreatorAmount),
			"version":      gorm.Expr("version + 1"),
			"updated_at":   now,
		}).Error; err != nil {
			return err
		}

		// 6. 平台汇总 + Outbox
		if err := s.bumpPlatform(tx, balanceDelta{
			Available: ps.PlatformFee,
			Fees:      ps.PlatformFee,
			Reserved:  ps.CreatorAmount,
		}); err != nil {
			return err
		}
		if err := model.CreateOutboxMessage(tx, eventTopicCredited, wallet.ID, creditedEvent(&ps)); err != nil {
			return err
		}

		if err := tx.First(&wallet, "id = ?", wallet.ID).Error; err != nil {
			return err
		}
		out = &CreditOutcome{Wallet: wallet, Split: ps, Transaction: wtx}
		return nil
	})

	if errors.Is(err, errConcurrentDuplicate) {
		return s.findCredit(s.db.WithContext(ctx), in.ExternalPaymentID)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) findCredit(tx *gorm.DB, externalPaymentID string) (*CreditOutcome, error) {
	var ps model.PaymentSplit
	if err := tx.First(&ps, "external_payment_id = ?", externalPaymentID).Error; err != nil {
		return nil, notFound(err)
	}
	out := &CreditOutcome{Split: ps, Duplicate: true}
	if err := tx.First(&out.Wallet, "id = ?", ps.WalletID).Error; err != nil {
		return nil, err
	}
	if err := tx.First(&out.Transaction, "reference = ?", creditReference(externalPaymentID, ps.ID)).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]model.WalletTransaction, error) {
	var txs []model.WalletTransaction
	q := timeRange(s.db.WithContext(ctx).Where("wallet_id = ?", walletID), from, to)
	err := q.Order("created_at ASC").Find(&txs).Error
	return txs, err
}

func (s *GormStore) GetWalletLedger(ctx context.Context, walletID string) (*model.CreatorWallet, []model.WalletTransaction, error) {
	var (
		w   model.CreatorWallet
		txs []model.WalletTransaction
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&w, "id = ?", walletID).Error; err != nil {
			return notFound(err)
		}
		return tx.Where("wallet_id = ?", walletID).Order("created_at ASC").Find(&txs).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	return &w, txs, nil
}

func (s *GormStore) ListPaymentSplits(ctx context.Context, filter SplitFilter) ([]model.PaymentSplit, error) {
	var splits []model.PaymentSplit
	q := s.db.WithContext(ctx).Model(&model.PaymentSplit{})
	if filter.WalletID != "" {
		q = q.Where("wallet_id = ?", filter.WalletID)
	}
	err := timeRange(q, filter.From, filter.To).Order("created_at ASC").Find(&splits).Error
	return splits, err
}

func (s *GormStore) SumFees(ctx context.Context, from, to time.Time) (decimal.Decimal, int64, error) {
	var row struct {
		Total decimal.Decimal
		Count int64
	}
	q := timeRange(s.db.WithContext(ctx).Model(&model.PaymentSplit{}), from, to)
	if err := q.Select("COALESCE(SUM(platform_fee), 0) AS total, COUNT(*) AS count").Scan(&row).Error; err != nil {
		return decimal.Zero, 0, err
	}
	return row.Total, row.Count, nil
}

func timeRange(q *gorm.DB, from, to time.Time) *gorm.DB {
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at < ?", to)
	}
	return q
}

// ---- payout requests ----

func (s *GormStore) ReservePayout(ctx context.Context, in ReserveInput) (*model.PayoutRequest, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var req *model.PayoutRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.opts.now()

		// 同一个 key 已冻结过: 先于扣减判断，重放不会报余额不足
		if dup, err := payoutKeyExists(tx, in.IdempotencyKey); err != nil || dup {
			if dup {
				return ErrDuplicatePayout
			}
			return err
		}

		// 条件扣减: balance >= amount 才更新，避免超扣
		res := tx.Model(&model.CreatorWallet{}).
			Where("id = ? AND balance >= ?", in.WalletID, in.Amount).
			Updates(map[string]interface{}{
				"balance":         gorm.Expr("balance - ?", in.Amount),
				"pending_balance": gorm.Expr("pending_balance + ?", in.Amount),
				"version":         gorm.Expr("version + 1"),
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}

		var wallet model.CreatorWallet
		if err := tx.First(&wallet, "id = ?", in.WalletID).Error; err != nil {
			return notFound(err)
		}
		if res.RowsAffected == 0 {
			// 并发的同 key 请求先提交时，等到行锁后余额已不足
			if dup, err := payoutKeyExists(tx, in.IdempotencyKey); err != nil || dup {
				if dup {
					return ErrDuplicatePayout
				}
				return err
			}
			return ErrInsufficientBalance
		}

		req = newPayoutRequest(in, &wallet, now)
		if err := tx.Create(req).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicatePayout
			}
			return err
		}
		return s.bumpPlatform(tx, balanceDelta{Reserved: in.Amount.Neg(), Pending: in.Amount})
	})

	if errors.Is(err, ErrDuplicatePayout) {
		existing, getErr := s.GetPayoutRequestByKey(ctx, in.IdempotencyKey)
		if getErr != nil {
			return nil, getErr
		}
		return existing, ErrDuplicatePayout
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *GormStore) CompletePayout(ctx context.Context, requestID, externalID string) (*model.PayoutRequest, error) {
	return s.settle(ctx, requestID, func(tx *gorm.DB, req *model.PayoutRequest, now time.Time) error {
		if err := tx.Model(&model.CreatorWallet{}).Where("id = ?", req.WalletID).Updates(map[string]interface{}{
			"pending_balance": gorm.Expr("pending_balance - ?", req.Amount),
			"total_withdrawn": gorm.Expr("total_withdrawn + ?", req.Amount),
			"version":         gorm.Expr("version + 1"),
			"updated_at":      now,
		}).Error; err != nil {
			return err
		}

		req.Status = model.PayoutRequestCompleted
		if externalID != "" {
			ext := externalID
			req.ExternalPayoutID = &ext
		}
		wtx := buildPayoutTransaction(req, externalID, now)
		if err := tx.Create(&wtx).Error; err != nil {
			return err
		}
		return s.bumpPlatform(tx, balanceDelta{Pending: req.Amount.Neg(), Payouts: req.Amount})
	})
}

func (s *GormStore) FailPayout(ctx context.Context, requestID, reason string) (*model.PayoutRequest, error) {
	return s.settle(ctx, requestID, func(tx *gorm.DB, req *model.PayoutRequest, now time.Time) error {
		if err := tx.Model(&model.CreatorWallet{}).Where("id = ?", req.WalletID).Updates(map[string]interface{}{
			"pending_balance": gorm.Expr("pending_balance - ?", req.Amount),
			"balance":         gorm.Expr("balance + ?", req.Amount),
			"version":         gorm.Expr("version + 1"),
			"updated_at":      now,
		}).Error; err != nil {
			return err
		}

		req.Status = model.PayoutRequestFailed
		req.FailureReason = reason
		return s.bumpPlatform(tx, balanceDelta{Pending: req.Amount.Neg(), Reserved: req.Amount})
	})
}

// settle 锁定打款单 -> 校验状态 -> 执行资金变动 -> 保存 -> 写 Outbox
func (s *GormStore) settle(ctx context.Context, requestID string, apply func(tx *gorm.DB, req *model.PayoutRequest, now time.Time) error) (*model.PayoutRequest, error) {
	var req model.PayoutRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&req, "id = ?", requestID).Error; err != nil {
			return notFound(err)
		}
		if req.Status.IsTerminal() {
			return ErrInvalidTransition
		}

		now := s.opts.now()
		if err := apply(tx, &req, now); err != nil {
			return err
		}
		req.ProcessedAt = &now
		req.UpdatedAt = now
		if err := tx.Save(&req).Error; err != nil {
			return err
		}

		topic, ev := settledEvent(&req)
		return model.CreateOutboxMessage(tx, topic, req.WalletID, ev)
	})
	if errors.Is(err, ErrInvalidTransition) {
		return &req, err
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *GormStore) GetPayoutRequest(ctx context.Context, requestID string) (*model.PayoutRequest, error) {
	var req model.PayoutRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", requestID).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func payoutKeyExists(tx *gorm.DB, idempotencyKey string) (bool, error) {
	var n int64
	if err := tx.Model(&model.PayoutRequest{}).Where("idempotency_key = ?", idempotencyKey).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *GormStore) GetPayoutRequestByKey(ctx context.Context, idempotencyKey string) (*model.PayoutRequest, error) {
	var req model.PayoutRequest
	if err := s.db.WithContext(ctx).First(&req, "idempotency_key = ?", idempotencyKey).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func (s *GormStore) FindCompletedPayout(ctx context.Context, lineageID, creatorID string) (*model.PayoutRequest, error) {
	var req model.PayoutRequest
	err := s.db.WithContext(ctx).
		Where("lineage_id = ? AND creator_id = ? AND status = ?", lineageID, creatorID, model.PayoutRequestCompleted).
		First(&req).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func (s *GormStore) ListPayoutRequests(ctx context.Context, filter PayoutRequestFilter) ([]model.PayoutRequest, error) {
	filter.Normalize()
	q := s.db.WithContext(ctx).Model(&model.PayoutRequest{})
	if filter.WalletID != "" {
		q = q.Where("wallet_id = ?", filter.WalletID)
	}
	if filter.JobID != "" {
		q = q.Where("job_id = ?", filter.JobID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var reqs []model.PayoutRequest
	err := q.Order("requested_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&reqs).Error
	return reqs, err
}

// ---- jobs ----

func (s *GormStore) CreatePayoutJob(ctx context.Context, job *model.PayoutJob) error {
	if job.ID == "" {
		job.ID = newID()
	}
	if job.LineageID == "" {
		job.LineageID = job.ID
	}
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *GormStore) GetPayoutJob(ctx context.Context, jobID string) (*model.PayoutJob, error) {
	var job model.PayoutJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// ClaimPayoutJob UPDATE ... WHERE status = 'pending'，只有一个调用方能抢到
func (s *GormStore) ClaimPayoutJob(ctx context.Context, jobID string, at time.Time) (*model.PayoutJob, bool, error) {
	res := s.db.WithContext(ctx).Model(&model.PayoutJob{}).
		Where("id = ? AND status = ?", jobID, model.JobPending).
		Updates(map[string]interface{}{
			"status":     model.JobProcessing,
			"started_at": at.UTC(),
			"updated_at": s.opts.now(),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	job, err := s.GetPayoutJob(ctx, jobID)
	if err != nil {
		return nil, false, err
	}
	return job, res.RowsAffected == 1, nil
}

func (s *GormStore) FinalizePayoutJob(ctx context.Context, in FinalizeInput) (*model.PayoutJob, error) {
	var job model.PayoutJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.PayoutJob{}).
			Where("id = ? AND status = ?", in.JobID, model.JobProcessing).
			Updates(map[string]interface{}{
				"status":             in.Status,
				"successful_payouts": in.SuccessfulPayouts,
				"failed_payouts":     in.FailedPayouts,
				"creators":           in.Creators,
				"errors":             in.Errors,
				"completed_at":       in.CompletedAt.UTC(),
				"updated_at":         s.opts.now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&job, "id = ?", in.JobID).Error; err != nil {
			return notFound(err)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return model.CreateOutboxMessage(tx, eventTopicJobFinalized, job.ID, finalizedEvent(&job))
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *GormStore) ListPayoutJobs(ctx context.Context, filter PayoutJobFilter) ([]model.PayoutJob, int64, error) {
	filter.Normalize()
	q := s.db.WithContext(ctx).Model(&model.PayoutJob{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ParentJobID != "" {
		q = q.Where("parent_job_id = ?", filter.ParentJobID)
	}
	if filter.DateFrom != nil {
		q = q.Where("scheduled_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		q = q.Where("scheduled_date <= ?", *filter.DateTo)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var jobs []model.PayoutJob
	err := q.Order("scheduled_date DESC, created_at DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&jobs).Error
	return jobs, total, err
}

// ---- idempotency ----

func (s *GormStore) ReserveIdempotencyKey(ctx context.Context, key, requestHash string) (*model.IdempotencyKey, bool, error) {
	rec := model.IdempotencyKey{
		Key:         key,
		RequestHash: requestHash,
		Status:      model.IdempotencyInProgress,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &rec, true, nil
	}

	var existing model.IdempotencyKey
	if err := s.db.WithContext(ctx).First(&existing, "key = ?", key).Error; err != nil {
		return nil, false, notFound(err)
	}
	if existing.RequestHash != requestHash {
		return &existing, false, ErrIdempotencyMismatch
	}
	return &existing, false, nil
}

func (s *GormStore) CompleteIdempotencyKey(ctx context.Context, key, responseRef string) error {
	res := s.db.WithContext(ctx).Model(&model.IdempotencyKey{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"status":       model.IdempotencyCompleted,
			"response_ref": responseRef,
			"updated_at":   s.opts.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- platform ----

func (s *GormStore) GetPrimaryAccount(ctx context.Context) (*model.PlatformAccount, error) {
	acct, err := primaryAccount(s.db.WithContext(ctx))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return acct, err
}

func primaryAccount(tx *gorm.DB) (*model.PlatformAccount, error) {
	var acct model.PlatformAccount
	if err := tx.Where("is_primary = ?", true).First(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *GormStore) GetPlatformAccount(ctx context.Context, id string) (*model.PlatformAccount, error) {
	var acct model.PlatformAccount
	if err := s.db.WithContext(ctx).First(&acct, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}

func (s *GormStore) ListPlatformAccounts(ctx context.Context) ([]model.PlatformAccount, error) {
	var accts []model.PlatformAccount
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&accts).Error
	return accts, err
}

// SavePlatformAccount 先清除其他主账户再写入，配合 is_primary 部分唯一索引
func (s *GormStore) SavePlatformAccount(ctx context.Context, acct *model.PlatformAccount) error {
	if acct.ID == "" {
		acct.ID = newID()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if acct.IsPrimary {
			if err := tx.Model(&model.PlatformAccount{}).
				Where("is_primary = ? AND id <> ?", true, acct.ID).
				Update("is_primary", false).Error; err != nil {
				return err
			}
		}

		var existing model.PlatformAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&existing, "id = ?", acct.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(acct).Error
		case err != nil:
			return err
		}
		acct.CreatedAt = existing.CreatedAt
		return tx.Save(acct).Error
	})
}

func (s *GormStore) GetPlatformBalance(ctx context.Context, accountID string) (*model.PlatformBalance, error) {
	var b model.PlatformBalance
	err := s.db.WithContext(ctx).First(&b, "platform_account_id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct, getErr := s.GetPlatformAccount(ctx, accountID)
		if getErr != nil {
			return nil, getErr
		}
		return emptyBalance(acct), nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) GetActiveFeeConfig(ctx context.Context) (*model.PlatformFeeConfig, error) {
	cfg, err := activeFee(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotFound
	}
	return cfg, nil
}

func activeFee(tx *gorm.DB) (*model.PlatformFeeConfig, error) {
	var cfg model.PlatformFeeConfig
	err := tx.Where("is_active = ?", true).Order("effective_from DESC").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *GormStore) SetFeeConfig(ctx context.Context, percentage decimal.Decimal, effectiveFrom time.Time) (*model.PlatformFeeConfig, error) {
	cfg := model.PlatformFeeConfig{
		ID:            newID(),
		Percentage:    percentage,
		IsActive:      true,
		EffectiveFrom: effectiveFrom.UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.PlatformFeeConfig{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(&cfg).Error
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bumpPlatform 累加主账户资金汇总；未配置主账户时跳过
func (s *GormStore) bumpPlatform(tx *gorm.DB, d balanceDelta) error {
	acct, err := primaryAccount(tx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(emptyBalance(acct)).Error; err != nil {
		return err
	}
	return tx.Model(&model.PlatformBalance{}).
		Where("platform_account_id = ?", acct.ID).
		Updates(map[string]interface{}{
			"available":            gorm.Expr("available + ?", d.Available),
			"pending":              gorm.Expr("pending + ?", d.Pending),
			"reserved":             gorm.Expr("reserved + ?", d.Reserved),
			"total_fees_collected": gorm.Expr("total_fees_collected + ?", d.Fees),
			"total_payouts_made":   gorm.Expr("total_payouts_made + ?", d.Payouts),
			"updated_at":           s.opts.now(),
		}).Error
}

// ---- outbox ----

func (s *GormStore) ListPendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	var msgs []model.OutboxMessage
	err := s.db.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (s *GormStore) MarkOutboxSent(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}
