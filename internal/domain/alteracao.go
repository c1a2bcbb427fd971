package domain

import "time"

// Alteracao is an immutable audit entry recording one situation change.
type Alteracao struct {
	ID         int64
	ChamadoID  int64
	UserID     *int64 // nil when the solicitante acted
	Data       time.Time
	Descricao  *string
	Situacao   Situacao
	Prioridade Prioridade
}

// IsSolicitanteAction returns true if no staff user is attached to the entry.
func (a *Alteracao) IsSolicitanteAction() bool {
	return a.UserID == nil
}
