package domain

import "time"

// Chamado is a support request tracked through its situations.
//
// Situacao and Prioridade mirror the most recent Alteracao. They are
// maintained by the store when an alteracao is appended and must never be
// assigned independently by callers.
type Chamado struct {
	ID            int64
	Descricao     string
	Situacao      Situacao
	Prioridade    Prioridade
	SetorID       int64
	SolicitanteID *int64
	UserID        *int64
	TI            bool
	ChamadoTIID   *int64
	CreatedAt     time.Time

	// Loaded on demand.
	Alteracoes  []Alteracao
	ChamadoTI   *ChamadoTI
	Solicitante *Solicitante
}

// IsOwnedBy checks if the chamado was opened by the given solicitante.
func (c *Chamado) IsOwnedBy(solicitanteID int64) bool {
	return c.SolicitanteID != nil && *c.SolicitanteID == solicitanteID
}

// LastAlteracao returns the most recent audit entry, or nil if none is loaded.
func (c *Chamado) LastAlteracao() *Alteracao {
	if len(c.Alteracoes) == 0 {
		return nil
	}
	return &c.Alteracoes[len(c.Alteracoes)-1]
}

// ChamadoTI holds the IT-specific details of a chamado.
type ChamadoTI struct {
	ID         int64
	ProblemaID *int64
	Patrimonio string
	CreatedAt  time.Time
}
