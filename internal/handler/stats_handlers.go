package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/mtlprog/helpdesk/internal/handler/dto"
	"github.com/mtlprog/helpdesk/internal/middleware"
	"github.com/mtlprog/helpdesk/internal/repository"
)

// StatsReader reads chamado statistics.
type StatsReader interface {
	GetUserStats(ctx context.Context, filters repository.StatsFilters) ([]repository.UserStatsResult, error)
	GetSetorStats(ctx context.Context, filters repository.StatsFilters) (*repository.SetorStatsResult, error)
}

// handleGetStats returns chamado statistics for the technician's setor.
// Managers may pass setorId, or omit it to see every setor.
// @Summary Get statistics
// @Description Chamado and technician statistics for a given period
// @Tags stats
// @Produce json
// @Param period query string false "Period: day, week (default), month, all"
// @Param setorId query int false "Setor filter (managers only)"
// @Success 200 {object} dto.StatsResponse
// @Failure 403 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /chamado/stats [get]
func (h *Handler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	// Parse period parameter
	query := r.URL.Query()
	period := query.Get("period")
	if period == "" {
		period = "week"
	}

	now := h.now()
	var periodStart time.Time
	switch period {
	case "day":
		periodStart = now.AddDate(0, 0, -1)
	case "week":
		periodStart = now.AddDate(0, 0, -7)
	case "month":
		periodStart = now.AddDate(0, -1, 0)
	case "all":
		periodStart = time.Time{}
	default:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid period, must be: day, week, month, all")
		return
	}

	// Resolve setor scope
	setorID := user.SetorID
	if v := query.Get("setorId"); v != "" {
		if !user.IsManager {
			respondError(w, http.StatusForbidden, "FORBIDDEN", "only managers can choose the setor")
			return
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "setorId must be a positive integer")
			return
		}
		setorID = &id
	} else if user.IsManager {
		setorID = nil
	} else if setorID == nil {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "user is not assigned to a setor")
		return
	}

	filters := repository.StatsFilters{SetorID: setorID, PeriodStart: periodStart, PeriodEnd: now}

	userStats, err := h.stats.GetUserStats(ctx, filters)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	setorStats, err := h.stats.GetSetorStats(ctx, filters)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	users := make([]dto.UserStats, len(userStats))
	for i, stat := range userStats {
		users[i] = dto.UserStats{
			UserID:        stat.UserID,
			Username:      stat.Username,
			Concluidos:    stat.Concluidos,
			EmAtendimento: stat.EmAtendimento,
			Pendentes:     stat.Pendentes,
		}
	}

	bySituacao := make(map[string]int, len(setorStats.BySituacao))
	for situacao, count := range setorStats.BySituacao {
		bySituacao[string(situacao)] = count
	}

	completionRate := 0.0
	if setorStats.TotalCreated > 0 {
		done := setorStats.BySituacao[domain.SituacaoConcluido]
		completionRate = float64(done) / float64(setorStats.TotalCreated) * 100
	}

	respondJSON(w, http.StatusOK, dto.StatsResponse{
		Period:      period,
		PeriodStart: periodStart,
		PeriodEnd:   now,
		SetorID:     setorID,
		Users:       users,
		Setor: dto.SetorStatistics{
			TotalCreated:          setorStats.TotalCreated,
			BySituacao:            bySituacao,
			UnassignedOpen:        setorStats.UnassignedOpen,
			CompletionRatePercent: completionRate,
		},
	})
}
