package domain

import "time"

// User is a staff member who processes chamados.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Nome         string
	Email        string
	SetorID      *int64
	IsManager    bool
	IsActive     bool
	CreatedAt    time.Time
}
