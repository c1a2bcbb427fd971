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

// SetorRepository is the read-only sector/problem catalog.
type SetorRepository struct {
	pool *pgxpool.Pool
}

// NewSetorRepository creates a new SetorRepository.
func NewSetorRepository(pool *pgxpool.Pool) *SetorRepository {
	return &SetorRepository{pool: pool}
}

// GetByID retrieves a setor with its problemas.
func (r *SetorRepository) GetByID(ctx context.Context, db DBTX, id int64) (*domain.Setor, error) {
	query, args, err := psql.
		Select("id", "nome").
		From("setores").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for setor %d: %w", id, err)
	}

	var setor domain.Setor
	if err := db.QueryRow(ctx, query, args...).Scan(&setor.ID, &setor.Nome); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSetorNotFound
		}
		return nil, fmt.Errorf("query setor: %w", err)
	}

	problemas, err := r.problemas(ctx, db, sq.Eq{"setor_id": id})
	if err != nil {
		return nil, err
	}
	setor.Problemas = problemas

	return &setor, nil
}

// List retrieves every setor with its problemas, ordered by name.
func (r *SetorRepository) List(ctx context.Context) ([]domain.Setor, error) {
	query, args, err := psql.
		Select("id", "nome").
		From("setores").
		OrderBy("nome ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query for setores: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query setores: %w", err)
	}
	defer rows.Close()

	setores := []domain.Setor{}
	index := map[int64]int{}
	for rows.Next() {
		var s domain.Setor
		if err := rows.Scan(&s.ID, &s.Nome); err != nil {
			return nil, fmt.Errorf("scan setor: %w", err)
		}
		s.Problemas = []domain.Problema{}
		index[s.ID] = len(setores)
		setores = append(setores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	problemas, err := r.problemas(ctx, r.pool, nil)
	if err != nil {
		return nil, err
	}
	for _, p := range problemas {
		if i, ok := index[p.SetorID]; ok {
			setores[i].Problemas = append(setores[i].Problemas, p)
		}
	}

	return setores, nil
}

func (r *SetorRepository) problemas(ctx context.Context, db DBTX, where sq.Sqlizer) ([]domain.Problema, error) {
	qb := psql.
		Select("id", "descricao", "setor_id").
		From("problemas").
		OrderBy("id ASC")
	if where != nil {
		qb = qb.Where(where)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build problemas query: %w", err)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query problemas: %w", err)
	}
	defer rows.Close()

	problemas := []domain.Problema{}
	for rows.Next() {
		var p domain.Problema
		if err := rows.Scan(&p.ID, &p.Descricao, &p.SetorID); err != nil {
			return nil, fmt.Errorf("scan problema: %w", err)
		}
		problemas = append(problemas, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return problemas, nil
}
