package auth

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	Email          string    `bun:"email,type:varchar(320),unique,notnull" json:"email"`
	HashedPassword string    `bun:"hashed_password,notnull" json:"-"`
	IsActive       bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	IsSuperuser    bool      `bun:"is_superuser,notnull,default:false" json:"is_superuser"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user"`
}
