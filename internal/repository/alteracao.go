package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/helpdesk/internal/domain"
)

var alteracaoColumns = []string{
	"id", "chamado_id", "user_id", "data", "descricao", "situacao", "prioridade",
}

// AlteracaoRepository records the audit trail of chamados.
type AlteracaoRepository struct {
	pool *pgxpool.Pool
}

// NewAlteracaoRepository creates a new AlteracaoRepository.
func NewAlteracaoRepository(pool *pgxpool.Pool) *AlteracaoRepository {
	return &AlteracaoRepository{pool: pool}
}

// Append inserts a new alteracao. The alteracoes_after_insert trigger copies
// its situacao and prioridade onto the chamado in the same transaction, which
// is the only path that changes those chamado columns.
func (r *AlteracaoRepository) Append(ctx context.Context, tx pgx.Tx, a *domain.Alteracao) error {
	if a.Prioridade == "" {
		a.Prioridade = domain.PrioridadeMedia
	}

	query, args, err := psql.
		Insert("alteracoes").
		Columns("chamado_id", "user_id", "descricao", "situacao", "prioridade").
		Values(a.ChamadoID, a.UserID, a.Descricao, a.Situacao, a.Prioridade).
		Suffix("RETURNING id, data").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Append query for alteracao: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&a.ID, &a.Data); err != nil {
		return fmt.Errorf("create alteracao: %w", err)
	}

	return nil
}

// ListByChamado retrieves all alteracoes of a chamado in insertion order.
func (r *AlteracaoRepository) ListByChamado(ctx context.Context, db DBTX, chamadoID int64) ([]domain.Alteracao, error) {
	query, args, err := psql.
		Select(alteracaoColumns...).
		From("alteracoes").
		Where(sq.Eq{"chamado_id": chamadoID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByChamado query: %w", err)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alteracoes: %w", err)
	}
	defer rows.Close()

	alteracoes := []domain.Alteracao{}
	for rows.Next() {
		var a domain.Alteracao
		err := rows.Scan(
			&a.ID,
			&a.ChamadoID,
			&a.UserID,
			&a.Data,
			&a.Descricao,
			&a.Situacao,
			&a.Prioridade,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alteracao: %w", err)
		}
		alteracoes = append(alteracoes, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return alteracoes, nil
}
