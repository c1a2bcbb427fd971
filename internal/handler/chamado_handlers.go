package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/mtlprog/helpdesk/internal/handler/dto"
	"github.com/mtlprog/helpdesk/internal/middleware"
	"github.com/mtlprog/helpdesk/internal/service"
)

// handleCreateChamado opens a new chamado.
// @Summary Open a chamado
// @Description Opens a chamado for the given solicitante. Setting ti, problemaId or patrimonio opens an IT chamado.
// @Tags chamado
// @Accept json
// @Produce json
// @Param request body dto.CreateChamadoRequest true "Chamado creation request"
// @Success 201 {object} dto.ChamadoResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /chamado [post]
func (h *Handler) handleCreateChamado(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateChamadoRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	params := service.CreateChamadoParams{
		Descricao: req.Descricao,
		SetorID:   req.SetorID,
		Solicitante: domain.Solicitante{
			CPF:   req.Solicitante.CPF,
			Nome:  req.Solicitante.Nome,
			Email: req.Solicitante.Email,
		},
		Prioridade: domain.Prioridade(req.Prioridade),
	}
	if req.IsTI() {
		params.TI = &service.TIDetails{
			ProblemaID: req.ProblemaID,
			Patrimonio: req.Patrimonio,
		}
	}

	chamado, err := h.chamados.Create(r.Context(), params)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToChamadoResponse(chamado))
}

// handleGetChamado returns one of the solicitante's chamados with its history.
// @Summary Get chamado
// @Tags chamado
// @Produce json
// @Param id path int true "Chamado ID"
// @Success 200 {object} dto.ChamadoResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security SolicitanteCPF
// @Router /chamado/{id} [get]
func (h *Handler) handleGetChamado(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	solicitante, err := middleware.GetSolicitanteFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Solicitante required")
		return
	}

	id, ok := extractChamadoID(w, r)
	if !ok {
		return
	}

	chamado, err := h.chamados.GetForSolicitante(ctx, id, solicitante)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToChamadoResponse(chamado))
}

// handleListOwnChamados lists the solicitante's chamados.
// @Summary List own chamados
// @Tags chamado
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Items per page (max 100)"
// @Param situacao query string false "Comma-separated situacoes"
// @Success 200 {object} dto.ChamadoPageResponse
// @Security SolicitanteCPF
// @Router /chamado [get]
func (h *Handler) handleListOwnChamados(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	solicitante, err := middleware.GetSolicitanteFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Solicitante required")
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	page, err := h.chamados.ListBySolicitante(ctx, solicitante, params)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToChamadoPageResponse(page))
}

// handleListUserChamados lists the chamados assigned to the technician or
// waiting in the technician's setor.
// @Summary List chamados for the technician
// @Tags chamado
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Items per page (max 100)"
// @Param situacao query string false "Comma-separated situacoes"
// @Success 200 {object} dto.ChamadoPageResponse
// @Security BearerAuth
// @Router /chamado/user [get]
func (h *Handler) handleListUserChamados(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	page, err := h.chamados.ListByUser(ctx, user, params)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToChamadoPageResponse(page))
}

// handleUpdateSituacao records a situacao change made by a technician.
// TRANSFERIDO moves the chamado to transferido.setorId.
// @Summary Change situacao
// @Tags chamado
// @Accept json
// @Produce json
// @Param id path int true "Chamado ID"
// @Param request body dto.UpdateSituacaoRequest true "Situacao change"
// @Success 200 {object} dto.ChamadoResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /chamado/{id}/situacao [put]
func (h *Handler) handleUpdateSituacao(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	id, ok := extractChamadoID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateSituacaoRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var chamado *domain.Chamado
	if domain.Situacao(req.Situacao) == domain.SituacaoTransferido {
		chamado, err = h.chamados.TransferChamado(ctx, id, service.TransferParams{
			SetorID:    req.Transferido.SetorID,
			UserID:     req.Transferido.UserID,
			Descricao:  req.Descricao,
			Prioridade: domain.Prioridade(req.Prioridade),
		}, user)
	} else {
		chamado, err = h.chamados.UpdateSituacao(ctx, id, service.UpdateSituacaoParams{
			Situacao:   domain.Situacao(req.Situacao),
			Descricao:  req.Descricao,
			Prioridade: domain.Prioridade(req.Prioridade),
		}, user)
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToChamadoResponse(chamado))
}

// handleCancelChamado cancels one of the solicitante's chamados.
// @Summary Cancel chamado
// @Tags chamado
// @Produce json
// @Param id path int true "Chamado ID"
// @Success 200 {object} dto.ChamadoResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security SolicitanteCPF
// @Router /chamado/{id} [delete]
func (h *Handler) handleCancelChamado(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	solicitante, err := middleware.GetSolicitanteFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Solicitante required")
		return
	}

	id, ok := extractChamadoID(w, r)
	if !ok {
		return
	}

	chamado, err := h.chamados.CancelChamadoSituacao(ctx, id, solicitante)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToChamadoResponse(chamado))
}

// parseListParams reads page, limit and situacao from the query string.
// situacao may be repeated or comma-separated.
func parseListParams(r *http.Request) (service.ListParams, error) {
	query := r.URL.Query()
	var params service.ListParams

	if v := query.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("page must be an integer")
		}
		params.Page = page
	}

	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("limit must be an integer")
		}
		params.Limit = limit
	}

	for _, v := range query["situacao"] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				params.Situacoes = append(params.Situacoes, domain.Situacao(strings.ToUpper(s)))
			}
		}
	}

	return params, nil
}
