package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/helpdesk/internal/domain"
)

// ChamadoTIRepository handles the IT sub-records of chamados.
type ChamadoTIRepository struct {
	pool *pgxpool.Pool
}

// NewChamadoTIRepository creates a new ChamadoTIRepository.
func NewChamadoTIRepository(pool *pgxpool.Pool) *ChamadoTIRepository {
	return &ChamadoTIRepository{pool: pool}
}

// Create inserts the IT sub-record. It must run before the chamado insert
// so the chamado can reference it.
func (r *ChamadoTIRepository) Create(ctx context.Context, tx pgx.Tx, ti *domain.ChamadoTI) error {
	query, args, err := psql.
		Insert("chamados_ti").
		Columns("problema_id", "patrimonio").
		Values(ti.ProblemaID, ti.Patrimonio).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for chamado_ti: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&ti.ID, &ti.CreatedAt); err != nil {
		return fmt.Errorf("create chamado_ti: %w", err)
	}

	return nil
}

// GetByID retrieves an IT sub-record by ID.
func (r *ChamadoTIRepository) GetByID(ctx context.Context, db DBTX, id int64) (*domain.ChamadoTI, error) {
	query, args, err := psql.
		Select("id", "problema_id", "patrimonio", "created_at").
		From("chamados_ti").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for chamado_ti: %w", err)
	}

	var ti domain.ChamadoTI
	err = db.QueryRow(ctx, query, args...).Scan(&ti.ID, &ti.ProblemaID, &ti.Patrimonio, &ti.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("chamado_ti %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("query chamado_ti: %w", err)
	}

	return &ti, nil
}
