package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/mtlprog/helpdesk/internal/domain"
)

// EventType names a committed lifecycle change.
type EventType string

const (
	EventChamadoCreated     EventType = "chamado.created"
	EventChamadoUpdated     EventType = "chamado.updated"
	EventChamadoTransferred EventType = "chamado.transferred"
	EventChamadoCancelled   EventType = "chamado.cancelled"
)

// Event is what sinks receive after a lifecycle operation commits.
// It is safe to publish: contact details of the solicitante travel only in
// Recipient, which is never serialized.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"type"`
	ChamadoID  int64          `json:"chamadoId"`
	SetorID    int64          `json:"setorId"`
	ActorID    *int64         `json:"actorId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Chamado    ChamadoPayload `json:"chamado"`

	Recipient *Recipient `json:"-"`
}

// Recipient is the solicitante to be emailed about the change.
type Recipient struct {
	Nome  string
	Email string
}

// ChamadoPayload is the chamado state carried by an event.
type ChamadoPayload struct {
	ID            int64              `json:"id"`
	Descricao     string             `json:"descricao"`
	Situacao      domain.Situacao    `json:"situacao"`
	Color         string             `json:"color"`
	Prioridade    domain.Prioridade  `json:"prioridade"`
	SetorID       int64              `json:"setorId"`
	UserID        *int64             `json:"userId,omitempty"`
	TI            bool               `json:"ti"`
	CreatedAt     time.Time          `json:"createdAt"`
	Alteracoes    []AlteracaoPayload `json:"alteracoes"`
	LastAlteracao *AlteracaoPayload  `json:"lastAlteracao,omitempty"`
}

// AlteracaoPayload is one audit entry of the chamado.
type AlteracaoPayload struct {
	ID         int64             `json:"id"`
	Data       time.Time         `json:"data"`
	Descricao  *string           `json:"descricao,omitempty"`
	Situacao   domain.Situacao   `json:"situacao"`
	Color      string            `json:"color"`
	Prioridade domain.Prioridade `json:"prioridade"`
	UserID     *int64            `json:"userId,omitempty"`
}

func newAlteracaoPayload(a domain.Alteracao) AlteracaoPayload {
	return AlteracaoPayload{
		ID:         a.ID,
		Data:       a.Data,
		Descricao:  a.Descricao,
		Situacao:   a.Situacao,
		Color:      a.Situacao.Color(),
		Prioridade: a.Prioridade,
		UserID:     a.UserID,
	}
}

// NewEvent snapshots the committed chamado into an event.
func NewEvent(t EventType, c *domain.Chamado, actorID *int64) Event {
	e := Event{
		ID:         uuid.New(),
		Type:       t,
		ChamadoID:  c.ID,
		SetorID:    c.SetorID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Chamado: ChamadoPayload{
			ID:         c.ID,
			Descricao:  c.Descricao,
			Situacao:   c.Situacao,
			Color:      c.Situacao.Color(),
			Prioridade: c.Prioridade,
			SetorID:    c.SetorID,
			UserID:     c.UserID,
			TI:         c.TI,
			CreatedAt:  c.CreatedAt,
		},
	}

	e.Chamado.Alteracoes = make([]AlteracaoPayload, 0, len(c.Alteracoes))
	for _, a := range c.Alteracoes {
		e.Chamado.Alteracoes = append(e.Chamado.Alteracoes, newAlteracaoPayload(a))
	}
	if n := len(e.Chamado.Alteracoes); n > 0 {
		last := e.Chamado.Alteracoes[n-1]
		e.Chamado.LastAlteracao = &last
	}

	if c.Solicitante != nil && c.Solicitante.Email != "" {
		e.Recipient = &Recipient{Nome: c.Solicitante.Nome, Email: c.Solicitante.Email}
	}

	return e
}
