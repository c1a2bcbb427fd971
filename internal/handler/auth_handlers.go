package handler

import (
	"net/http"

	"github.com/mtlprog/helpdesk/internal/handler/dto"
)

// handleSignIn exchanges staff credentials for an access token.
// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.SignInRequest true "Credentials"
// @Success 200 {object} dto.SignInResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /auth/signin [post]
func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.SignInRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.auth.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.SignInResponse{
		AccessToken: result.AccessToken,
		ExpiresAt:   result.ExpiresAt,
	})
}

// handleListSetores returns the setor catalog with problemas.
// @Summary List setores
// @Tags setor
// @Produce json
// @Success 200 {array} dto.SetorResponse
// @Router /setor [get]
func (h *Handler) handleListSetores(w http.ResponseWriter, r *http.Request) {
	setores, err := h.setores.List(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToSetorResponses(setores))
}
