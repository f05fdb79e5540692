// internal/launch/errors.go
package launch

import "errors"

var (
	ErrInvalidSigner      = errors.New("launch: request signer not recognized")
	ErrNotAuthorized      = errors.New("launch: actor lacks required permission")
	ErrRequestExpired     = errors.New("launch: creation request expired")
	ErrRequestReplayed    = errors.New("launch: request id already consumed")
	ErrInvalidRequest     = errors.New("launch: malformed creation request")
	ErrInsufficientFee    = errors.New("launch: attached value below required payment")
	ErrTokenNotFound      = errors.New("launch: token not created")
	ErrTokenNotTrading    = errors.New("launch: token not in trading status")
	ErrTokenNotLaunched   = errors.New("launch: token not launched yet")
	ErrTransactionExpired = errors.New("launch: transaction deadline expired")
	ErrSlippageExceeded   = errors.New("launch: output below minimum")
	ErrInsufficientOutput = errors.New("launch: collected base cannot cover payout")
	ErrReentrantCall      = errors.New("launch: reentrant call rejected")
	ErrWrongStatus        = errors.New("launch: operation not allowed in current status")
	ErrFeeTooHigh         = errors.New("launch: fee above allowed maximum")
	ErrZeroAddress        = errors.New("launch: zero address")
	ErrZeroAmount         = errors.New("launch: zero amount")
)
