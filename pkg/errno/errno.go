package errno

import (
	"errors"
)

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Is matches on Code so that WithMessage copies still satisfy errors.Is.
func (e Errno) Is(target error) bool {
	var t Errno
	switch typed := target.(type) {
	case Errno:
		t = typed
	case *Errno:
		if typed == nil {
			return false
		}
		t = *typed
	default:
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy carrying a more specific message
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Decode tries to convert an error to Errno, looking through wrapped errors.
// The returned message is the outermost error text so the wrapping context is kept.
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, err.Error()
	}
	var val Errno
	if errors.As(err, &val) {
		return val.Code, err.Error()
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrInvalidAddress   = Errno{Code: 10003, Message: "Invalid account address"}
	ErrNotFound         = Errno{Code: 10004, Message: "Resource not found"}
)

// Wallet session errors (20100+)
var (
	ErrProviderUnavailable = Errno{Code: 20101, Message: "Wallet provider not available"}
	ErrUnsupportedNetwork  = Errno{Code: 20102, Message: "Wallet is not on Supra mainnet"}
	ErrNotConnected        = Errno{Code: 20103, Message: "Wallet not connected"}
	ErrConnectFailed       = Errno{Code: 20104, Message: "Wallet connection failed"}
)

// Transaction errors (20200+)
var (
	ErrInvalidAmount          = Errno{Code: 20201, Message: "Invalid amount"}
	ErrInsufficientBalance    = Errno{Code: 20202, Message: "Insufficient balance"}
	ErrSequenceFetchFailed    = Errno{Code: 20203, Message: "Failed to fetch account sequence number"}
	ErrTransactionBuildFailed = Errno{Code: 20204, Message: "Failed to build raw transaction"}
	ErrTransactionRejected    = Errno{Code: 20205, Message: "Transaction rejected by user"}
	ErrBroadcastFailed        = Errno{Code: 20206, Message: "Failed to broadcast transaction"}
)

// Chain read errors (20300+)
var (
	ErrBalanceFetchFailed = Errno{Code: 20301, Message: "Failed to fetch balances"}
	ErrPriceIndexFailed   = Errno{Code: 20302, Message: "Failed to fetch price index"}
	ErrLatestBlockFailed  = Errno{Code: 20303, Message: "Failed to fetch latest block"}
)
