package handler

import (
	"errors"

	"payout-core/internal/model"
	"payout-core/internal/processor"
	"payout-core/internal/service/payout"
	"payout-core/internal/service/platform"
	"payout-core/internal/service/wallet"
	"payout-core/internal/store"
	"payout-core/pkg/errno"
)

// toErrno 业务错误 -> 错误码；未识别的错误按 InternalServerError 处理
func toErrno(err error) error {
	var pe *processor.Error
	switch {
	case err == nil:
		return nil

	// wallet
	case errors.Is(err, wallet.ErrWalletNotFound):
		return errno.ErrWalletNotFound
	case errors.Is(err, wallet.ErrInsufficientBalance), errors.Is(err, store.ErrInsufficientBalance):
		return errno.ErrInsufficientBalance
	case errors.Is(err, wallet.ErrInvalidAmount):
		return errno.ErrInvalidAmount
	case errors.Is(err, wallet.ErrInvalidCurrency):
		return errno.ErrInvalidCurrency
	case errors.Is(err, wallet.ErrUnknownCreator):
		return errno.ErrUnknownCreator
	case errors.Is(err, wallet.ErrNoPayoutMethod):
		return errno.ErrNoPayoutMethod
	case errors.Is(err, model.ErrInvalidPayoutMethod):
		return errno.ErrInvalidPayoutMethod.WithMessage(err.Error())
	case errors.Is(err, wallet.ErrPayoutRequestNotFound):
		return errno.ErrPayoutRequestNotFound
	case errors.Is(err, wallet.ErrAlreadySettled):
		return errno.ErrInvalidTransition
	case errors.Is(err, wallet.ErrIdempotencyMismatch):
		return errno.ErrIdempotency

	// payout jobs
	case errors.Is(err, payout.ErrJobNotFound):
		return errno.ErrJobNotFound
	case errors.Is(err, payout.ErrJobNotPending):
		return errno.ErrJobNotPending.WithMessage(err.Error())
	case errors.Is(err, payout.ErrNoEligibleCreators):
		return errno.ErrNoEligibleCreators
	case errors.Is(err, payout.ErrJobNotRetryable):
		return errno.ErrJobNotRetryable.WithMessage(err.Error())
	case errors.Is(err, payout.ErrInvalidMinimum), errors.Is(err, platform.ErrInvalidMinimum):
		return errno.ErrInvalidMinimum
	case errors.Is(err, payout.ErrCheckRunning):
		return errno.ErrPayoutCheckRunning

	// platform
	case errors.Is(err, platform.ErrAccountNotFound):
		return errno.ErrPlatformAccountNotFound
	case errors.Is(err, platform.ErrNoPrimaryAccount):
		return errno.ErrNoPrimaryAccount
	case errors.Is(err, platform.ErrInvalidSchedule),
		errors.Is(err, platform.ErrInvalidPayoutDay),
		errors.Is(err, platform.ErrAccountNameRequired):
		return errno.ErrInvalidPlatformAccount.WithMessage(err.Error())
	case errors.Is(err, platform.ErrInvalidFeePercentage):
		return errno.ErrInvalidFeePercentage
	case errors.Is(err, platform.ErrOnboardingUnavailable):
		return errno.ErrOnboarding.WithMessage(err.Error())

	case errors.As(err, &pe):
		return errno.ErrProcessor.WithMessage(pe.Error())
	case errors.Is(err, store.ErrNotFound):
		return errno.ErrDatabase.WithMessage("record not found")
	default:
		return errno.InternalServerError
	}
}
