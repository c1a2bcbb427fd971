package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/helpdesk/internal/domain"
)

// foreignKeyViolation is the PostgreSQL SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

// chamadoColumns is the shared list of columns for chamado queries.
var chamadoColumns = []string{
	"id", "descricao", "situacao", "prioridade", "setor_id", "solicitante_id",
	"user_id", "ti", "chamado_ti_id", "created_at",
}

// ChamadoRepository handles database operations for chamados.
//
// It never writes situacao or prioridade after the initial insert; those
// columns follow the latest alteracao (see AlteracaoRepository.Append).
type ChamadoRepository struct {
	pool *pgxpool.Pool
}

// NewChamadoRepository creates a new ChamadoRepository.
func NewChamadoRepository(pool *pgxpool.Pool) *ChamadoRepository {
	return &ChamadoRepository{pool: pool}
}

// scanChamado scans a single row into a Chamado struct.
func scanChamado(row pgx.Row) (*domain.Chamado, error) {
	var c domain.Chamado
	err := row.Scan(
		&c.ID,
		&c.Descricao,
		&c.Situacao,
		&c.Prioridade,
		&c.SetorID,
		&c.SolicitanteID,
		&c.UserID,
		&c.TI,
		&c.ChamadoTIID,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChamadoNotFound
		}
		return nil, fmt.Errorf("scan chamado: %w", err)
	}
	return &c, nil
}

// scanChamados scans multiple rows into a slice of Chamado structs.
func scanChamados(rows pgx.Rows) ([]*domain.Chamado, error) {
	defer rows.Close()

	chamados := []*domain.Chamado{}
	for rows.Next() {
		c, err := scanChamado(rows)
		if err != nil {
			return nil, err
		}
		chamados = append(chamados, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return chamados, nil
}

// GetByID retrieves a chamado by ID.
func (r *ChamadoRepository) GetByID(ctx context.Context, db DBTX, id int64) (*domain.Chamado, error) {
	query, args, err := psql.
		Select(chamadoColumns...).
		From("chamados").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for chamado: %w", err)
	}

	return scanChamado(db.QueryRow(ctx, query, args...))
}

// GetByIDForUpdate retrieves a chamado by ID and locks the row until the transaction ends.
func (r *ChamadoRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Chamado, error) {
	query, args, err := psql.
		Select(chamadoColumns...).
		From("chamados").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByIDForUpdate query for chamado %d: %w", id, err)
	}

	return scanChamado(tx.QueryRow(ctx, query, args...))
}

// GetForSolicitante retrieves a chamado only if it belongs to the solicitante.
// A chamado owned by someone else is reported as not found.
func (r *ChamadoRepository) GetForSolicitante(ctx context.Context, id, solicitanteID int64) (*domain.Chamado, error) {
	query, args, err := psql.
		Select(chamadoColumns...).
		From("chamados").
		Where(sq.Eq{"id": id, "solicitante_id": solicitanteID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetForSolicitante query for chamado %d: %w", id, err)
	}

	return scanChamado(r.pool.QueryRow(ctx, query, args...))
}

// Create inserts a new chamado within a transaction.
// Returns the chamado with ID and CreatedAt populated.
func (r *ChamadoRepository) Create(ctx context.Context, tx pgx.Tx, c *domain.Chamado) error {
	if c.Situacao == "" {
		c.Situacao = domain.SituacaoAberto
	}
	if c.Prioridade == "" {
		c.Prioridade = domain.PrioridadeMedia
	}

	query, args, err := psql.
		Insert("chamados").
		Columns(
			"descricao", "situacao", "prioridade", "setor_id", "solicitante_id",
			"user_id", "ti", "chamado_ti_id",
		).
		Values(
			c.Descricao,
			c.Situacao,
			c.Prioridade,
			c.SetorID,
			c.SolicitanteID,
			c.UserID,
			c.TI,
			c.ChamadoTIID,
		).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for chamado: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("create chamado: %w", err)
	}

	return nil
}

// UpdateAssignment saves the chamado's setor and assigned user.
func (r *ChamadoRepository) UpdateAssignment(ctx context.Context, tx pgx.Tx, c *domain.Chamado) error {
	query, args, err := psql.
		Update("chamados").
		Set("setor_id", c.SetorID).
		Set("user_id", c.UserID).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateAssignment query for chamado %d: %w", c.ID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			switch pgErr.ConstraintName {
			case "chamados_user_id_fkey":
				return fmt.Errorf("%w: user %d", domain.ErrUserNotFound, *c.UserID)
			case "chamados_setor_id_fkey":
				return fmt.Errorf("%w: setor %d", domain.ErrSetorNotFound, c.SetorID)
			}
		}
		return fmt.Errorf("update chamado assignment: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrChamadoNotFound
	}

	return nil
}
