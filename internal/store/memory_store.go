package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"payout-core/internal/model"
)

// MemoryStore 进程内实现，sandbox 模式和单元测试使用。
// 一把互斥锁覆盖整个方法，等价于 Postgres 实现中的单事务。
type MemoryStore struct {
	mu   sync.Mutex
	opts Options

	wallets         map[string]*model.CreatorWallet
	walletByCreator map[string]string
	transactions    []model.WalletTransaction
	txRefs          map[string]int
	splits          []model.PaymentSplit
	splitByExternal map[string]int

	requests     map[string]*model.PayoutRequest
	requestByKey map[string]string
	jobs         map[string]*model.PayoutJob
	idempotency  map[string]*model.IdempotencyKey

	accounts   map[string]*model.PlatformAccount
	balances   map[string]*model.PlatformBalance
	feeConfigs []model.PlatformFeeConfig

	outbox    []model.OutboxMessage
	outboxSeq uint64
}

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:            opts,
		wallets:         make(map[string]*model.CreatorWallet),
		walletByCreator: make(map[string]string),
		txRefs:          make(map[string]int),
		splitByExternal: make(map[string]int),
		requests:        make(map[string]*model.PayoutRequest),
		requestByKey:    make(map[string]string),
		jobs:            make(map[string]*model.PayoutJob),
		idempotency:     make(map[string]*model.IdempotencyKey),
		accounts:        make(map[string]*model.PlatformAccount),
		balances:        make(map[string]*model.PlatformBalance),
	}
}

var _ Store = (*MemoryStore)(nil)

// ---- wallets ----

func (s *MemoryStore) GetOrCreateWallet(ctx context.Context, creatorID, currency string) (*model.CreatorWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneWallet(s.getOrCreateLocked(creatorID, currency)), nil
}

func (s *MemoryStore) getOrCreateLocked(creatorID, currency string) *model.CreatorWallet {
	if id, ok := s.walletByCreator[creatorID]; ok {
		return s.wallets[id]
	}
	now := s.opts.now()
	w := &model.CreatorWallet{
		ID:             newID(),
		CreatorID:      creatorID,
		Balance:        decimal.Zero,
		PendingBalance: decimal.Zero,
		TotalEarned:    decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		Currency:       currency,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.wallets[w.ID] = w
	s.walletByCreator[creatorID] = w.ID
	return w
}

func (s *MemoryStore) GetWallet(ctx context.Context, walletID string) (*model.CreatorWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneWallet(w), nil
}

func (s *MemoryStore) GetWalletByCreator(ctx context.Context, creatorID string) (*model.CreatorWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.walletByCreator[creatorID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneWallet(s.wallets[id]), nil
}

func (s *MemoryStore) ListActiveWallets(ctx context.Context, minBalance decimal.Decimal) ([]model.CreatorWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.CreatorWallet, 0)
	for _, w := range s.wallets {
		if w.IsActive && w.Balance.GreaterThanOrEqual(minBalance) {
			out = append(out, *cloneWallet(w))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateWalletPayoutMethod(ctx context.Context, walletID string, method *model.PayoutMethod, stripeAccountID *string) (*model.CreatorWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, ErrNotFound
	}
	w.PayoutMethod = clonePayoutMethod(method)
	if stripeAccountID != nil {
		id := *stripeAccountID
		w.StripeAccountID = &id
	}
	w.UpdatedAt = s.opts.now()
	return cloneWallet(w), nil
}

func (s *MemoryStore) DeactivateWallet(ctx context.Context, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return ErrNotFound
	}
	w.IsActive = false
	w.UpdatedAt = s.opts.now()
	return nil
}

// ---- ledger ----

func (s *MemoryStore) CreditSubscriptionPayment(ctx context.Context, in CreditInput) (*CreditOutcome, error) {
	if !in.Gross.IsPositive() {
		return nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 重复投递: 返回首次结果，不做任何变更
	if in.ExternalPaymentID != "" {
		if idx, ok := s.splitByExternal[in.ExternalPaymentID]; ok {
			ps := s.splits[idx]
			out := &CreditOutcome{Wallet: *cloneWallet(s.wallets[ps.WalletID]), Split: ps, Duplicate: true}
			if txIdx, ok := s.txRefs[creditReference(in.ExternalPaymentID, ps.ID)]; ok {
				out.Transaction = s.transactions[txIdx]
			}
			return out, nil
		}
	}

	wallet := s.getOrCreateLocked(in.CreatorID, in.Currency)
	if !wallet.IsActive {
		return nil, ErrWalletInactive
	}

	now := s.opts.now()
	pct := resolveFee(s.activeFeeLocked(), s.opts.DefaultFeePercentage)
	ps, tx, err := buildCredit(in, wallet, pct, now)
	if err != nil {
		return nil, err
	}

	wallet.Balance = wallet.Balance.Add(ps.CreatorAmount)
	wallet.TotalEarned = wallet.TotalEarned.Add(ps.CreatorAmount)
	wallet.Version++
	wallet.UpdatedAt = now

	s.splits = append(s.splits, ps)
	if in.ExternalPaymentID != "" {
		s.splitByExternal[in.ExternalPaymentID] = len(s.splits) - 1
	}
	s.appendTransactionLocked(tx)
	s.bumpPlatformLocked(balanceDelta{
		Available: ps.PlatformFee,
		Fees:      ps.PlatformFee,
		Reserved:  ps.CreatorAmount,
	})
	s.appendOutboxLocked(eventTopicCredited, wallet.ID, creditedEvent(&ps))

	return &CreditOutcome{Wallet: *cloneWallet(wallet), Split: ps, Transaction: tx}, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]model.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.WalletTransaction, 0)
	for _, tx := range s.transactions {
		if tx.WalletID == walletID && inRange(tx.CreatedAt, from, to) {
			out = append(out, cloneTransaction(tx))
		}
	}
	return out, nil
}

func (s *MemoryStore) GetWalletLedger(ctx context.Context, walletID string) (*model.CreatorWallet, []model.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	txs := make([]model.WalletTransaction, 0)
	for _, tx := range s.transactions {
		if tx.WalletID == walletID {
			txs = append(txs, cloneTransaction(tx))
		}
	}
	return cloneWallet(w), txs, nil
}

func (s *MemoryStore) ListPaymentSplits(ctx context.Context, filter SplitFilter) ([]model.PaymentSplit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PaymentSplit, 0)
	for _, ps := range s.splits {
		if filter.WalletID != "" && ps.WalletID != filter.WalletID {
			continue
		}
		if inRange(ps.CreatedAt, filter.From, filter.To) {
			out = append(out, ps)
		}
	}
	return out, nil
}

func (s *MemoryStore) SumFees(ctx context.Context, from, to time.Time) (decimal.Decimal, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	var count int64
	for _, ps := range s.splits {
		if inRange(ps.CreatedAt, from, to) {
			total = total.Add(ps.PlatformFee)
			count++
		}
	}
	return total, count, nil
}

// ---- payout requests ----

func (s *MemoryStore) ReservePayout(ctx context.Context, in ReserveInput) (*model.PayoutRequest, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.requestByKey[in.IdempotencyKey]; ok {
		return cloneRequest(s.requests[id]), ErrDuplicatePayout
	}
	wallet, ok := s.wallets[in.WalletID]
	if !ok {
		return nil, ErrNotFound
	}
	if wallet.Balance.LessThan(in.Amount) {
		return nil, ErrInsufficientBalance
	}

	now := s.opts.now()
	wallet.Balance = wallet.Balance.Sub(in.Amount)
	wallet.PendingBalance = wallet.PendingBalance.Add(in.Amount)
	wallet.Version++
	wallet.UpdatedAt = now

	req := newPayoutRequest(in, wallet, now)
	s.requests[req.ID] = req
	s.requestByKey[req.IdempotencyKey] = req.ID
	s.bumpPlatformLocked(balanceDelta{Reserved: in.Amount.Neg(), Pending: in.Amount})

	return cloneRequest(req), nil
}

func (s *MemoryStore) CompletePayout(ctx context.Context, requestID, externalID string) (*model.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	if req.Status.IsTerminal() {
		return cloneRequest(req), ErrInvalidTransition
	}
	wallet := s.wallets[req.WalletID]

	now := s.opts.now()
	wallet.PendingBalance = wallet.PendingBalance.Sub(req.Amount)
	wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(req.Amount)
	wallet.Version++
	wallet.UpdatedAt = now

	req.Status = model.PayoutRequestCompleted
	if externalID != "" {
		ext := externalID
		req.ExternalPayoutID = &ext
	}
	req.ProcessedAt = &now
	req.UpdatedAt = now

	s.appendTransactionLocked(buildPayoutTransaction(req, externalID, now))
	s.bumpPlatformLocked(balanceDelta{Pending: req.Amount.Neg(), Payouts: req.Amount})
	topic, ev := settledEvent(req)
	s.appendOutboxLocked(topic, req.WalletID, ev)

	return cloneRequest(req), nil
}

func (s *MemoryStore) FailPayout(ctx context.Context, requestID, reason string) (*model.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	if req.Status.IsTerminal() {
		return cloneRequest(req), ErrInvalidTransition
	}
	wallet := s.wallets[req.WalletID]

	now := s.opts.now()
	wallet.PendingBalance = wallet.PendingBalance.Sub(req.Amount)
	wallet.Balance = wallet.Balance.Add(req.Amount)
	wallet.Version++
	wallet.UpdatedAt = now

	req.Status = model.PayoutRequestFailed
	req.FailureReason = reason
	req.ProcessedAt = &now
	req.UpdatedAt = now

	s.bumpPlatformLocked(balanceDelta{Pending: req.Amount.Neg(), Reserved: req.Amount})
	topic, ev := settledEvent(req)
	s.appendOutboxLocked(topic, req.WalletID, ev)

	return cloneRequest(req), nil
}

func (s *MemoryStore) GetPayoutRequest(ctx context.Context, requestID string) (*model.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *MemoryStore) GetPayoutRequestByKey(ctx context.Context, idempotencyKey string) (*model.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.requestByKey[idempotencyKey]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRequest(s.requests[id]), nil
}

func (s *MemoryStore) FindCompletedPayout(ctx context.Context, lineageID, creatorID string) (*model.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.LineageID != nil && *req.LineageID == lineageID &&
			req.CreatorID == creatorID && req.Status == model.PayoutRequestCompleted {
			return cloneRequest(req), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListPayoutRequests(ctx context.Context, filter PayoutRequestFilter) ([]model.PayoutRequest, error) {
	filter.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.PayoutRequest, 0)
	for _, req := range s.requests {
		if filter.WalletID != "" && req.WalletID != filter.WalletID {
			continue
		}
		if filter.JobID != "" && (req.JobID == nil || *req.JobID != filter.JobID) {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		all = append(all, *cloneRequest(req))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RequestedAt.After(all[j].RequestedAt) })
	return paginate(all, filter.Limit, filter.Offset), nil
}

// ---- jobs ----

func (s *MemoryStore) CreatePayoutJob(ctx context.Context, job *model.PayoutJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = newID()
	}
	if job.LineageID == "" {
		job.LineageID = job.ID
	}
	now := s.opts.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryStore) GetPayoutJob(ctx context.Context, jobID string) (*model.PayoutJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) ClaimPayoutJob(ctx context.Context, jobID string, at time.Time) (*model.PayoutJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if job.Status != model.JobPending {
		return cloneJob(job), false, nil
	}
	started := at.UTC()
	job.Status = model.JobProcessing
	job.StartedAt = &started
	job.UpdatedAt = s.opts.now()
	return cloneJob(job), true, nil
}

func (s *MemoryStore) FinalizePayoutJob(ctx context.Context, in FinalizeInput) (*model.PayoutJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[in.JobID]
	if !ok {
		return nil, ErrNotFound
	}
	if job.Status != model.JobProcessing {
		return cloneJob(job), ErrInvalidTransition
	}
	completed := in.CompletedAt.UTC()
	job.Status = in.Status
	job.SuccessfulPayouts = in.SuccessfulPayouts
	job.FailedPayouts = in.FailedPayouts
	job.Creators = in.Creators.Clone()
	job.Errors = append(model.JobErrors(nil), in.Errors...)
	job.CompletedAt = &completed
	job.UpdatedAt = s.opts.now()

	s.appendOutboxLocked(eventTopicJobFinalized, job.ID, finalizedEvent(job))
	return cloneJob(job), nil
}

func (s *MemoryStore) ListPayoutJobs(ctx context.Context, filter PayoutJobFilter) ([]model.PayoutJob, int64, error) {
	filter.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.PayoutJob, 0)
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.ParentJobID != "" && (job.ParentJobID == nil || *job.ParentJobID != filter.ParentJobID) {
			continue
		}
		if filter.DateFrom != nil && job.ScheduledDate.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && job.ScheduledDate.After(*filter.DateTo) {
			continue
		}
		all = append(all, *cloneJob(job))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ScheduledDate.Equal(all[j].ScheduledDate) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ScheduledDate.After(all[j].ScheduledDate)
	})
	return paginate(all, filter.Limit, filter.Offset), int64(len(all)), nil
}

// ---- idempotency ----

func (s *MemoryStore) ReserveIdempotencyKey(ctx context.Context, key, requestHash string) (*model.IdempotencyKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.idempotency[key]; ok {
		cp := *rec
		if rec.RequestHash != requestHash {
			return &cp, false, ErrIdempotencyMismatch
		}
		return &cp, false, nil
	}
	now := s.opts.now()
	rec := &model.IdempotencyKey{
		Key:         key,
		RequestHash: requestHash,
		Status:      model.IdempotencyInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.idempotency[key] = rec
	cp := *rec
	return &cp, true, nil
}

func (s *MemoryStore) CompleteIdempotencyKey(ctx context.Context, key, responseRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.idempotency[key]
	if !ok {
		return ErrNotFound
	}
	rec.Status = model.IdempotencyCompleted
	rec.ResponseRef = responseRef
	rec.UpdatedAt = s.opts.now()
	return nil
}

// ---- platform ----

func (s *MemoryStore) GetPrimaryAccount(ctx context.Context) (*model.PlatformAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct := s.primaryLocked(); acct != nil {
		cp := *acct
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) primaryLocked() *model.PlatformAccount {
	for _, acct := range s.accounts {
		if acct.IsPrimary {
			return acct
		}
	}
	return nil
}

func (s *MemoryStore) GetPlatformAccount(ctx context.Context, id string) (*model.PlatformAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (s *MemoryStore) ListPlatformAccounts(ctx context.Context) ([]model.PlatformAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PlatformAccount, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, *acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SavePlatformAccount(ctx context.Context, acct *model.PlatformAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct.ID == "" {
		acct.ID = newID()
	}
	now := s.opts.now()
	if existing, ok := s.accounts[acct.ID]; ok {
		acct.CreatedAt = existing.CreatedAt
	} else {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now

	if acct.IsPrimary {
		for id, other := range s.accounts {
			if id != acct.ID {
				other.IsPrimary = false
			}
		}
	}
	cp := *acct
	s.accounts[acct.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPlatformBalance(ctx context.Context, accountID string) (*model.PlatformBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.balances[accountID]; ok {
		cp := *b
		return &cp, nil
	}
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return emptyBalance(acct), nil
}

func (s *MemoryStore) GetActiveFeeConfig(ctx context.Context) (*model.PlatformFeeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg := s.activeFeeLocked(); cfg != nil {
		cp := *cfg
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) activeFeeLocked() *model.PlatformFeeConfig {
	for i := len(s.feeConfigs) - 1; i >= 0; i-- {
		if s.feeConfigs[i].IsActive {
			return &s.feeConfigs[i]
		}
	}
	return nil
}

func (s *MemoryStore) SetFeeConfig(ctx context.Context, percentage decimal.Decimal, effectiveFrom time.Time) (*model.PlatformFeeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.feeConfigs {
		s.feeConfigs[i].IsActive = false
	}
	cfg := model.PlatformFeeConfig{
		ID:            newID(),
		Percentage:    percentage,
		IsActive:      true,
		EffectiveFrom: effectiveFrom.UTC(),
		CreatedAt:     s.opts.now(),
	}
	s.feeConfigs = append(s.feeConfigs, cfg)
	return &cfg, nil
}

// ---- outbox ----

func (s *MemoryStore) ListPendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutboxMessage, 0, limit)
	for _, msg := range s.outbox {
		if msg.Status == model.OutboxPending {
			out = append(out, msg)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkOutboxSent(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			s.outbox[i].Status = model.OutboxSent
			s.outbox[i].UpdatedAt = s.opts.now()
			return nil
		}
	}
	return ErrNotFound
}

// ---- helpers (调用方持有锁) ----

func (s *MemoryStore) appendTransactionLocked(tx model.WalletTransaction) {
	s.transactions = append(s.transactions, tx)
	s.txRefs[tx.Reference] = len(s.transactions) - 1
}

func (s *MemoryStore) bumpPlatformLocked(d balanceDelta) {
	acct := s.primaryLocked()
	if acct == nil {
		return
	}
	b, ok := s.balances[acct.ID]
	if !ok {
		b = emptyBalance(acct)
		s.balances[acct.ID] = b
	}
	d.apply(b)
	b.UpdatedAt = s.opts.now()
}

func (s *MemoryStore) appendOutboxLocked(topic, key string, payload interface{}) {
	msg, err := model.NewOutboxMessage(topic, key, payload)
	if err != nil {
		return
	}
	s.outboxSeq++
	msg.ID = s.outboxSeq
	msg.CreatedAt = s.opts.now()
	msg.UpdatedAt = msg.CreatedAt
	s.outbox = append(s.outbox, *msg)
}

func newPayoutRequest(in ReserveInput, wallet *model.CreatorWallet, now time.Time) *model.PayoutRequest {
	status := in.Status
	if status == "" {
		status = model.PayoutRequestPending
	}
	return &model.PayoutRequest{
		ID:             newID(),
		WalletID:       wallet.ID,
		CreatorID:      wallet.CreatorID,
		JobID:          cloneString(in.JobID),
		LineageID:      cloneString(in.LineageID),
		Amount:         in.Amount,
		Currency:       wallet.Currency,
		PayoutMethod:   in.Method,
		Status:         status,
		IdempotencyKey: in.IdempotencyKey,
		RequestedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func emptyBalance(acct *model.PlatformAccount) *model.PlatformBalance {
	return &model.PlatformBalance{
		PlatformAccountID:  acct.ID,
		Available:          decimal.Zero,
		Pending:            decimal.Zero,
		Reserved:           decimal.Zero,
		TotalFeesCollected: decimal.Zero,
		TotalPayoutsMade:   decimal.Zero,
		Currency:           acct.Currency,
	}
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePayoutMethod(m *model.PayoutMethod) *model.PayoutMethod {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func cloneWallet(w *model.CreatorWallet) *model.CreatorWallet {
	cp := *w
	cp.PayoutMethod = clonePayoutMethod(w.PayoutMethod)
	cp.StripeAccountID = cloneString(w.StripeAccountID)
	return &cp
}

func cloneTransaction(tx model.WalletTransaction) model.WalletTransaction {
	if tx.Metadata != nil {
		meta := make(model.Metadata, len(tx.Metadata))
		for k, v := range tx.Metadata {
			meta[k] = v
		}
		tx.Metadata = meta
	}
	return tx
}

func cloneRequest(r *model.PayoutRequest) *model.PayoutRequest {
	cp := *r
	cp.JobID = cloneString(r.JobID)
	cp.LineageID = cloneString(r.LineageID)
	cp.ExternalPayoutID = cloneString(r.ExternalPayoutID)
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		cp.ProcessedAt = &t
	}
	return &cp
}

func cloneJob(j *model.PayoutJob) *model.PayoutJob {
	cp := *j
	cp.Creators = j.Creators.Clone()
	cp.Errors = append(model.JobErrors(nil), j.Errors...)
	cp.ParentJobID = cloneString(j.ParentJobID)
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
