package ledger

import (
	"fmt"

	"charity-service/internal/investment"

	"github.com/uptrace/bun"
)

const (
	KindProject  = "project"
	KindDonation = "donation"
)

type Project struct {
	bun.BaseModel `bun:"table:charity_projects,alias:cp"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Name        string `bun:"name,type:varchar(100),unique,notnull" json:"name"`
	Description string `bun:"description,type:text,notnull" json:"description"`
	investment.Fund
}

type Donation struct {
	bun.BaseModel `bun:"table:donations,alias:d"`

	ID      int64  `bun:"id,pk,autoincrement" json:"id"`
	UserID  *int64 `bun:"user_id" json:"user_id,omitempty"`
	Comment string `bun:"comment,type:text,nullzero" json:"comment,omitempty"`
	investment.Fund
}

// Ref identifies one record on either side of the ledger.
type Ref struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Record is a ledger row that can take part in an allocation run.
type Record interface {
	investment.Investable
	Ref() Ref
}

func (p *Project) Ref() Ref {
	return Ref{Kind: KindProject, ID: p.ID}
}

func (d *Donation) Ref() Ref {
	return Ref{Kind: KindDonation, ID: d.ID}
}

// Models lists the ledger tables in creation order.
func Models() []interface{} {
	return []interface{}{(*Project)(nil), (*Donation)(nil)}
}
