package dto

import (
	"time"

	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/mtlprog/helpdesk/internal/service"
)

// ChamadoResponse represents a chamado with its audit trail.
type ChamadoResponse struct {
	ID          int64                `json:"id"`
	Descricao   string               `json:"descricao"`
	Situacao    string               `json:"situacao"`
	Color       string               `json:"color"`
	Prioridade  string               `json:"prioridade"`
	SetorID     int64                `json:"setorId"`
	UserID      *int64               `json:"userId"`
	TI          bool                 `json:"ti"`
	CreatedAt   time.Time            `json:"createdAt"`
	ChamadoTI   *ChamadoTIResponse   `json:"chamadoTi,omitempty"`
	Solicitante *SolicitanteResponse `json:"solicitante,omitempty"`
	Alteracoes  []AlteracaoResponse  `json:"alteracoes,omitempty"`
}

// ChamadoTIResponse represents the IT details of a chamado.
type ChamadoTIResponse struct {
	ID         int64  `json:"id"`
	ProblemaID *int64 `json:"problemaId"`
	Patrimonio string `json:"patrimonio"`
}

// SolicitanteResponse represents the solicitante of a chamado.
type SolicitanteResponse struct {
	ID    int64  `json:"id"`
	CPF   string `json:"cpf"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

// AlteracaoResponse represents one audit entry.
type AlteracaoResponse struct {
	ID         int64     `json:"id"`
	Data       time.Time `json:"data"`
	Descricao  *string   `json:"descricao"`
	Situacao   string    `json:"situacao"`
	Color      string    `json:"color"`
	Prioridade string    `json:"prioridade"`
	UserID     *int64    `json:"userId"`
}

// ChamadoPageResponse represents a page of chamados.
type ChamadoPageResponse struct {
	Items []ChamadoResponse `json:"items"`
	Meta  service.PageMeta  `json:"meta"`
}

// SetorResponse represents a setor and its problemas.
type SetorResponse struct {
	ID        int64              `json:"id"`
	Nome      string             `json:"nome"`
	Problemas []ProblemaResponse `json:"problemas"`
}

// ProblemaResponse represents a problema of a setor.
type ProblemaResponse struct {
	ID        int64  `json:"id"`
	Descricao string `json:"descricao"`
}

// SignInResponse is returned by POST /auth/signin.
type SignInResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ToChamadoResponse converts a domain chamado.
func ToChamadoResponse(c *domain.Chamado) ChamadoResponse {
	resp := ChamadoResponse{
		ID:         c.ID,
		Descricao:  c.Descricao,
		Situacao:   string(c.Situacao),
		Color:      c.Situacao.Color(),
		Prioridade: string(c.Prioridade),
		SetorID:    c.SetorID,
		UserID:     c.UserID,
		TI:         c.TI,
		CreatedAt:  c.CreatedAt,
	}

	if c.ChamadoTI != nil {
		resp.ChamadoTI = &ChamadoTIResponse{
			ID:         c.ChamadoTI.ID,
			ProblemaID: c.ChamadoTI.ProblemaID,
			Patrimonio: c.ChamadoTI.Patrimonio,
		}
	}

	if c.Solicitante != nil {
		resp.Solicitante = &SolicitanteResponse{
			ID:    c.Solicitante.ID,
			CPF:   c.Solicitante.CPF,
			Nome:  c.Solicitante.Nome,
			Email: c.Solicitante.Email,
		}
	}

	if len(c.Alteracoes) > 0 {
		resp.Alteracoes = make([]AlteracaoResponse, 0, len(c.Alteracoes))
		for _, a := range c.Alteracoes {
			resp.Alteracoes = append(resp.Alteracoes, AlteracaoResponse{
				ID:         a.ID,
				Data:       a.Data,
				Descricao:  a.Descricao,
				Situacao:   string(a.Situacao),
				Color:      a.Situacao.Color(),
				Prioridade: string(a.Prioridade),
				UserID:     a.UserID,
			})
		}
	}

	return resp
}

// ToChamadoPageResponse converts a page of chamados.
func ToChamadoPageResponse(p *service.Page) ChamadoPageResponse {
	items := make([]ChamadoResponse, 0, len(p.Items))
	for _, c := range p.Items {
		items = append(items, ToChamadoResponse(c))
	}
	return ChamadoPageResponse{Items: items, Meta: p.Meta}
}

// ToSetorResponses converts the setor catalog.
func ToSetorResponses(setores []domain.Setor) []SetorResponse {
	out := make([]SetorResponse, 0, len(setores))
	for _, s := range setores {
		problemas := make([]ProblemaResponse, 0, len(s.Problemas))
		for _, p := range s.Problemas {
			problemas = append(problemas, ProblemaResponse{ID: p.ID, Descricao: p.Descricao})
		}
		out = append(out, SetorResponse{ID: s.ID, Nome: s.Nome, Problemas: problemas})
	}
	return out
}

// StatsResponse represents chamado statistics for a period.
type StatsResponse struct {
	Period      string          `json:"period"`
	PeriodStart time.Time       `json:"periodStart"`
	PeriodEnd   time.Time       `json:"periodEnd"`
	SetorID     *int64          `json:"setorId"`
	Users       []UserStats     `json:"users"`
	Setor       SetorStatistics `json:"setor"`
}

// UserStats represents per-technician statistics.
type UserStats struct {
	UserID        int64  `json:"userId"`
	Username      string `json:"username"`
	Concluidos    int    `json:"concluidos"`
	EmAtendimento int    `json:"emAtendimento"`
	Pendentes     int    `json:"pendentes"`
}

// SetorStatistics represents chamado counts for the chamados opened in the period.
type SetorStatistics struct {
	TotalCreated          int            `json:"totalCreated"`
	BySituacao            map[string]int `json:"bySituacao"`
	UnassignedOpen        int            `json:"unassignedOpen"`
	CompletionRatePercent float64        `json:"completionRatePercent"`
}
