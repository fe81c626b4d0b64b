package donation

import (
	"time"

	"charity-service/internal/ledger"
)

type CreateRequest struct {
	FullAmount int64   `json:"full_amount" validate:"required,gt=0"`
	Comment    *string `json:"comment"`
}

// View is what a donor sees of their own donations. Allocation state stays
// with superusers.
type View struct {
	ID         int64     `json:"id"`
	FullAmount int64     `json:"full_amount"`
	Comment    string    `json:"comment,omitempty"`
	CreateDate time.Time `json:"create_date"`
}

func NewView(d *ledger.Donation) View {
	return View{
		ID:         d.ID,
		FullAmount: d.FullAmount,
		Comment:    d.Comment,
		CreateDate: d.CreateDate,
	}
}

func NewViews(donations []ledger.Donation) []View {
	views := make([]View, 0, len(donations))
	for i := range donations {
		views = append(views, NewView(&donations[i]))
	}
	return views
}
