package ledger

import (
	"errors"

	"charity-service/internal/investment"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrDuplicateName         = errors.New("project with the same name already exists")
	ErrInvalidAmountDecrease = investment.ErrAmountBelowInvested
	ErrEntityClosed          = errors.New("closed project cannot be edited")
	ErrEntityHasFunds        = errors.New("funds have been invested in the project, it cannot be deleted")
	ErrValidation            = errors.New("validation failed")
)
