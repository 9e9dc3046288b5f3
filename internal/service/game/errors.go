package game

import "errors"

// Placement failures. Their text goes to the user's status log.
var (
	ErrInvalidAmount       = errors.New("invalid bet amount")
	ErrInvalidBox          = errors.New("invalid box")
	ErrInsufficientBalance = errors.New("user has no balance for the bet")
	ErrAssetNotAllowed     = errors.New("box size parameters are not set for asset pair")
	ErrInvalidCoefficient  = errors.New("invalid coefficient")
)

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "amount"
	case errors.Is(err, ErrInvalidBox):
		return "box"
	case errors.Is(err, ErrInsufficientBalance):
		return "balance"
	case errors.Is(err, ErrAssetNotAllowed):
		return "asset"
	case errors.Is(err, ErrInvalidCoefficient):
		return "coefficient"
	}
	return "other"
}
