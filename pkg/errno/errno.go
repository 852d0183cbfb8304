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

// Decode tries to convert an error to Errno.
// Wrapped errors (fmt.Errorf("%w")) are unwrapped until an Errno is found.
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, err.Error()
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, err.Error()
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Chain / transaction errors (30000+)
var (
	ErrEstimationFailure      = Errno{Code: 30001, Message: "Fee estimation failed"}
	ErrBroadcastFailure       = Errno{Code: 30002, Message: "Broadcast rejected by node"}
	ErrInvalidSignInformation = Errno{Code: 30003, Message: "Neither a software key nor a hardware device was supplied"}
	ErrUnsupportedChain       = Errno{Code: 30004, Message: "Unsupported chain"}
	ErrInvalidAddress         = Errno{Code: 30005, Message: "Invalid address"}
	ErrInvalidAmount          = Errno{Code: 30006, Message: "Invalid amount"}
)

// Hardware errors (31000+)
var (
	ErrNoDeviceConnected = Errno{Code: 31001, Message: "No hardware device connected"}
	ErrRadioDisabled     = Errno{Code: 31002, Message: "Wireless radio is disabled"}
	ErrTransportBusy     = Errno{Code: 31003, Message: "Another hardware transport is already open"}
	ErrDeviceRejected    = Errno{Code: 31004, Message: "Hardware device rejected the request"}
)

// Key custody errors (32000+)
var (
	ErrWrongPin            = Errno{Code: 32001, Message: "Wrong PIN"}
	ErrWrongPassword       = Errno{Code: 32002, Message: "Wrong password"}
	ErrKeyNotFound         = Errno{Code: 32003, Message: "Private key not found"}
	ErrMigrationIncomplete = Errno{Code: 32004, Message: "Key migration did not complete for every chain"}
)
