package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mtlprog/helpdesk/internal/domain"
)

// StatsFilters holds filters for statistics queries.
type StatsFilters struct {
	SetorID     *int64 // Optional: restrict to one setor
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// UserStatsResult holds statistics for a single technician.
type UserStatsResult struct {
	UserID        int64
	Username      string
	Concluidos    int
	EmAtendimento int
	Pendentes     int
}

// SetorStatsResult holds chamado counts for the chamados opened in the period.
type SetorStatsResult struct {
	TotalCreated   int
	BySituacao     map[domain.Situacao]int
	UnassignedOpen int
}

// GetUserStats retrieves per-technician statistics. Concluidos counts the
// chamados a technician closed within the period, according to the audit trail.
func (r *ChamadoRepository) GetUserStats(ctx context.Context, filters StatsFilters) ([]UserStatsResult, error) {
	query := `
		SELECT
			u.id,
			u.username,
			(
				SELECT COUNT(DISTINCT a.chamado_id)
				FROM alteracoes a
				WHERE a.user_id = u.id AND a.situacao = 'CONCLUIDO' AND a.data >= $1 AND a.data <= $2
			) AS concluidos,
			COUNT(c.id) FILTER (WHERE c.situacao = 'EM_ATENDIMENTO') AS em_atendimento,
			COUNT(c.id) FILTER (WHERE c.situacao = 'PENDENTE') AS pendentes
		FROM users u
		LEFT JOIN chamados c ON c.user_id = u.id
		WHERE u.is_active = true
	`

	args := []interface{}{filters.PeriodStart, filters.PeriodEnd}

	if filters.SetorID != nil {
		query += " AND u.setor_id = $3"
		args = append(args, *filters.SetorID)
	}

	query += " GROUP BY u.id, u.username ORDER BY u.username"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user stats: %w", err)
	}
	defer rows.Close()

	var results []UserStatsResult
	for rows.Next() {
		var s UserStatsResult
		if err := rows.Scan(&s.UserID, &s.Username, &s.Concluidos, &s.EmAtendimento, &s.Pendentes); err != nil {
			return nil, fmt.Errorf("scan user stats: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user stats: %w", err)
	}

	return results, nil
}

// GetSetorStats retrieves chamado counts by situacao.
func (r *ChamadoRepository) GetSetorStats(ctx context.Context, filters StatsFilters) (*SetorStatsResult, error) {
	builder := psql.
		Select("situacao", "COUNT(*)", "COUNT(*) FILTER (WHERE user_id IS NULL)").
		From("chamados").
		Where("created_at >= ? AND created_at <= ?", filters.PeriodStart, filters.PeriodEnd).
		GroupBy("situacao")
	if filters.SetorID != nil {
		builder = builder.Where("setor_id = ?", *filters.SetorID)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetSetorStats query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query setor stats: %w", err)
	}
	defer rows.Close()

	result := &SetorStatsResult{BySituacao: make(map[domain.Situacao]int)}
	for rows.Next() {
		var (
			situacao   domain.Situacao
			count      int
			unassigned int
		)
		if err := rows.Scan(&situacao, &count, &unassigned); err != nil {
			return nil, fmt.Errorf("scan setor stats: %w", err)
		}
		result.BySituacao[situacao] = count
		result.TotalCreated += count
		if !situacao.IsTerminal() {
			result.UnassignedOpen += unassigned
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate setor stats: %w", err)
	}

	return result, nil
}
