package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/mtlprog/helpdesk/internal/domain"
)

// ChamadoListFilters holds all supported filters for chamado listing.
type ChamadoListFilters struct {
	SolicitanteID *int64            // Optional: only chamados opened by this solicitante
	UserID        *int64            // Optional: chamados assigned to this user
	UserSetorID   *int64            // Optional, with UserID: also unassigned chamados of this setor
	Situacoes     []domain.Situacao // Optional: filter by situacao
	Limit         int               // Required: page size
	Offset        int               // Required: page offset
}

// where builds the shared predicate for the page and count queries.
func (f ChamadoListFilters) where() sq.And {
	conds := sq.And{}

	if f.SolicitanteID != nil {
		conds = append(conds, sq.Eq{"solicitante_id": *f.SolicitanteID})
	}

	if f.UserID != nil {
		if f.UserSetorID != nil {
			conds = append(conds, sq.Or{
				sq.Eq{"user_id": *f.UserID},
				sq.And{sq.Eq{"user_id": nil}, sq.Eq{"setor_id": *f.UserSetorID}},
			})
		} else {
			conds = append(conds, sq.Eq{"user_id": *f.UserID})
		}
	}

	if len(f.Situacoes) > 0 {
		conds = append(conds, sq.Eq{"situacao": f.Situacoes})
	}

	return conds
}

// List retrieves chamados with filters and pagination, newest first.
// The second return value is the total number of matches ignoring pagination.
func (r *ChamadoRepository) List(ctx context.Context, filters ChamadoListFilters) ([]*domain.Chamado, int, error) {
	where := filters.where()

	query, args, err := psql.
		Select(chamadoColumns...).
		From("chamados").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(filters.Limit)).
		Offset(uint64(filters.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build List query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query chamados: %w", err)
	}

	chamados, err := scanChamados(rows)
	if err != nil {
		return nil, 0, err
	}

	countQuery, countArgs, err := psql.
		Select("COUNT(*)").
		From("chamados").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count chamados: %w", err)
	}

	return chamados, total, nil
}
