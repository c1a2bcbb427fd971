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

// SolicitanteRepository resolves the external requesters of chamados.
type SolicitanteRepository struct {
	pool *pgxpool.Pool
}

// NewSolicitanteRepository creates a new SolicitanteRepository.
func NewSolicitanteRepository(pool *pgxpool.Pool) *SolicitanteRepository {
	return &SolicitanteRepository{pool: pool}
}

// FindOrCreate resolves the solicitante by CPF, inserting it if unknown.
// An existing row is returned unchanged; s is filled with the stored values.
func (r *SolicitanteRepository) FindOrCreate(ctx context.Context, tx pgx.Tx, s *domain.Solicitante) error {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query, args, err := psql.
		Insert("solicitantes").
		Columns("cpf", "nome", "email").
		Values(s.CPF, s.Nome, s.Email).
		Suffix("ON CONFLICT (cpf) DO UPDATE SET cpf = EXCLUDED.cpf RETURNING id, nome, email, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build FindOrCreate query for solicitante: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&s.ID, &s.Nome, &s.Email, &s.CreatedAt); err != nil {
		return fmt.Errorf("find or create solicitante: %w", err)
	}

	return nil
}

// GetByCPF retrieves a solicitante by CPF.
func (r *SolicitanteRepository) GetByCPF(ctx context.Context, cpf string) (*domain.Solicitante, error) {
	return r.get(ctx, r.pool, sq.Eq{"cpf": cpf})
}

// GetByID retrieves a solicitante by ID.
func (r *SolicitanteRepository) GetByID(ctx context.Context, db DBTX, id int64) (*domain.Solicitante, error) {
	return r.get(ctx, db, sq.Eq{"id": id})
}

func (r *SolicitanteRepository) get(ctx context.Context, db DBTX, where sq.Eq) (*domain.Solicitante, error) {
	query, args, err := psql.
		Select("id", "cpf", "nome", "email", "created_at").
		From("solicitantes").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query for solicitante: %w", err)
	}

	var s domain.Solicitante
	err = db.QueryRow(ctx, query, args...).Scan(&s.ID, &s.CPF, &s.Nome, &s.Email, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSolicitanteNotFound
		}
		return nil, fmt.Errorf("query solicitante: %w", err)
	}

	return &s, nil
}
