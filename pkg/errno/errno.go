package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage 复用错误码，替换提示信息
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, typed.Message
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrTokenInvalid     = Errno{Code: 10003, Message: "Token invalid"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
	ErrIdempotency      = Errno{Code: 10005, Message: "Idempotency key reused with a different request"}
)

// Wallet Errors (201xx)
var (
	ErrWalletNotFound        = Errno{Code: 20101, Message: "Wallet not found"}
	ErrInsufficientBalance   = Errno{Code: 20102, Message: "Insufficient balance"}
	ErrInvalidPayoutMethod   = Errno{Code: 20103, Message: "Invalid payout method"}
	ErrPayoutRequestNotFound = Errno{Code: 20104, Message: "Payout request not found"}
	ErrInvalidTransition     = Errno{Code: 20105, Message: "Payout request is already settled"}
	ErrInvalidAmount         = Errno{Code: 20106, Message: "Amount must be greater than zero"}
	ErrInvalidCurrency       = Errno{Code: 20107, Message: "Currency must be a 3-letter ISO code"}
	ErrNoPayoutMethod        = Errno{Code: 20108, Message: "No payout method configured"}
	ErrUnknownCreator        = Errno{Code: 20109, Message: "Creator for subscription could not be resolved"}
)

// Payout Job Errors (202xx)
var (
	ErrJobNotFound        = Errno{Code: 20201, Message: "Payout job not found"}
	ErrJobNotPending      = Errno{Code: 20202, Message: "Payout job is not pending"}
	ErrNoEligibleCreators = Errno{Code: 20203, Message: "No eligible creators"}
	ErrJobNotRetryable    = Errno{Code: 20204, Message: "Payout job cannot be retried"}
	ErrInvalidMinimum     = Errno{Code: 20205, Message: "Minimum amount must not be negative"}
	ErrPayoutCheckRunning = Errno{Code: 20206, Message: "Automated payout check is already running"}
)

// Platform Errors (203xx)
var (
	ErrPlatformAccountNotFound = Errno{Code: 20301, Message: "Platform account not found"}
	ErrInvalidPlatformAccount  = Errno{Code: 20302, Message: "Invalid platform account"}
	ErrInvalidFeePercentage    = Errno{Code: 20303, Message: "Fee percentage must be between 0 and 100"}
	ErrNoPrimaryAccount        = Errno{Code: 20304, Message: "No primary platform account configured"}
)

// Processor Errors (30000+)
var (
	ErrProcessor  = Errno{Code: 30001, Message: "Payment processor error"}
	ErrOnboarding = Errno{Code: 30002, Message: "Stripe Connect onboarding failed"}
)
