package investment

import (
	"errors"
	"time"
)

var ErrAmountBelowInvested = errors.New("more funds have already been invested than the new full amount")

// Fund is the money state shared by projects and donations.
//
// It is embedded by value into both records so that the amounts, the closure
// flag and the timestamps map onto the same columns in either table.
type Fund struct {
	FullAmount     int64      `bun:"full_amount,notnull" json:"full_amount"`
	InvestedAmount int64      `bun:"invested_amount,notnull,default:0" json:"invested_amount"`
	FullyInvested  bool       `bun:"fully_invested,notnull,default:false" json:"fully_invested"`
	CreateDate     time.Time  `bun:"create_date,notnull,default:current_timestamp" json:"create_date"`
	CloseDate      *time.Time `bun:"close_date" json:"close_date,omitempty"`
}

// Investable is anything that carries a Fund. Records embedding Fund get it
// for free through the promoted Funds method.
type Investable interface {
	Funds() *Fund
}

func (f *Fund) Funds() *Fund {
	return f
}

// Remaining is how much can still move into or out of the fund.
func (f *Fund) Remaining() int64 {
	return f.FullAmount - f.InvestedAmount
}

// Close marks the fund fully invested. The first close date wins.
func Close(f *Fund, now time.Time) {
	if f.FullyInvested {
		return
	}
	f.FullyInvested = true
	closed := now
	f.CloseDate = &closed
}

// Retarget changes the full amount of an open fund. A target equal to what is
// already invested closes the fund on the spot.
func Retarget(f *Fund, fullAmount int64, now time.Time) error {
	if fullAmount < f.InvestedAmount {
		return ErrAmountBelowInvested
	}
	f.FullAmount = fullAmount
	if f.FullAmount == f.InvestedAmount {
		Close(f, now)
	}
	return nil
}

// Consistent reports whether the fund satisfies the ledger invariants.
func (f *Fund) Consistent() bool {
	if f.InvestedAmount < 0 || f.InvestedAmount > f.FullAmount {
		return false
	}
	if f.FullyInvested != (f.InvestedAmount == f.FullAmount) {
		return false
	}
	return f.FullyInvested == (f.CloseDate != nil)
}
