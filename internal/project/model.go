package project

// CreateRequest is the body of POST /charity_project. Money fields owned by
// the server are not accepted.
type CreateRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"required"`
	FullAmount  int64  `json:"full_amount" validate:"required,gt=0"`
}

// UpdateRequest is the body of PATCH /charity_project/{id}. Absent fields are
// left untouched; at least one must be present.
type UpdateRequest struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=100"`
	Description *string `json:"description" validate:"omitnil,min=1"`
	FullAmount  *int64  `json:"full_amount" validate:"omitnil,gt=0"`
}

func (r UpdateRequest) empty() bool {
	return r.Name == nil && r.Description == nil && r.FullAmount == nil
}
