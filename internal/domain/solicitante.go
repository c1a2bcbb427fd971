package domain

import "time"

// Solicitante is the external party who opens chamados, identified by CPF.
type Solicitante struct {
	ID        int64
	CPF       string
	Nome      string
	Email     string
	CreatedAt time.Time
}
