package service

import (
	"context"
	"fmt"

	"github.com/mtlprog/helpdesk/internal/config"
	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/mtlprog/helpdesk/internal/repository"
)

// ListParams holds pagination and filter input for listing chamados.
type ListParams struct {
	Page      int
	Limit     int
	Situacoes []domain.Situacao
}

// PageMeta describes a page of results.
type PageMeta struct {
	TotalItems   int `json:"totalItems"`
	ItemCount    int `json:"itemCount"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalPages   int `json:"totalPages"`
	CurrentPage  int `json:"currentPage"`
}

// Page is a page of chamados.
type Page struct {
	Items []*domain.Chamado
	Meta  PageMeta
}

func (s *ChamadoService) normalize(p ListParams) (ListParams, error) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = s.pageSize
	}
	if p.Limit > config.MaxPageSize {
		p.Limit = config.MaxPageSize
	}
	for _, st := range p.Situacoes {
		if !st.IsValid() {
			return p, fmt.Errorf("%w: %q", domain.ErrInvalidSituacao, st)
		}
	}
	return p, nil
}

func newPage(items []*domain.Chamado, total int, p ListParams) *Page {
	totalPages := 0
	if total > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return &Page{
		Items: items,
		Meta: PageMeta{
			TotalItems:   total,
			ItemCount:    len(items),
			ItemsPerPage: p.Limit,
			TotalPages:   totalPages,
			CurrentPage:  p.Page,
		},
	}
}

// GetForSolicitante returns a chamado with its audit trail, but only to the
// solicitante who opened it.
func (s *ChamadoService) GetForSolicitante(ctx context.Context, id int64, solicitante *domain.Solicitante) (*domain.Chamado, error) {
	if solicitante == nil {
		return nil, domain.ErrChamadoNotFound
	}

	c, err := s.chamados.GetForSolicitante(ctx, id, solicitante.ID)
	if err != nil {
		return nil, s.queryError("get_for_solicitante", err)
	}
	c.Solicitante = solicitante

	if err := s.loadDetails(ctx, s.db, c); err != nil {
		return nil, s.queryError("get_for_solicitante", err)
	}
	return c, nil
}

// GetByID returns a chamado with its audit trail for staff.
func (s *ChamadoService) GetByID(ctx context.Context, id int64) (*domain.Chamado, error) {
	c, err := s.chamados.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, s.queryError("get", err)
	}
	if err := s.loadDetails(ctx, s.db, c); err != nil {
		return nil, s.queryError("get", err)
	}
	return c, nil
}

// ListBySolicitante lists the chamados opened by a solicitante, newest first.
func (s *ChamadoService) ListBySolicitante(ctx context.Context, solicitante *domain.Solicitante, p ListParams) (*Page, error) {
	if solicitante == nil {
		return nil, fmt.Errorf("%w: solicitante is required", domain.ErrInvalidInput)
	}
	p, err := s.normalize(p)
	if err != nil {
		return nil, err
	}

	items, total, err := s.chamados.List(ctx, repository.ChamadoListFilters{
		SolicitanteID: &solicitante.ID,
		Situacoes:     p.Situacoes,
		Limit:         p.Limit,
		Offset:        (p.Page - 1) * p.Limit,
	})
	if err != nil {
		return nil, s.queryError("list_by_solicitante", err)
	}
	return newPage(items, total, p), nil
}

// ListByUser lists the chamados a staff user works on: those assigned to the
// user plus unassigned ones in the user's setor.
func (s *ChamadoService) ListByUser(ctx context.Context, user *domain.User, p ListParams) (*Page, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}
	p, err := s.normalize(p)
	if err != nil {
		return nil, err
	}

	items, total, err := s.chamados.List(ctx, repository.ChamadoListFilters{
		UserID:      &user.ID,
		UserSetorID: user.SetorID,
		Situacoes:   p.Situacoes,
		Limit:       p.Limit,
		Offset:      (p.Page - 1) * p.Limit,
	})
	if err != nil {
		return nil, s.queryError("list_by_user", err)
	}
	return newPage(items, total, p), nil
}

func (s *ChamadoService) queryError(op string, err error) error {
	if domain.IsCategorized(err) {
		return err
	}
	return s.internal(op, err)
}
