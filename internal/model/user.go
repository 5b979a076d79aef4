// Package model holds the domain types shared by the services and the store.
package model

import "time"

// RoleUser is the only role the app hands out.
const RoleUser = "user"

// PlanID identifies a subscription plan.
type PlanID string

const (
	PlanStart   PlanID = "start"
	PlanHorizon PlanID = "horizon"
	PlanAtlas   PlanID = "atlas"
)

// User is an account plus its editable profile.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	CPF       string    `json:"cpf,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	AvatarURL string    `json:"avatar,omitempty"`
	Plan      PlanID    `json:"plan"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
