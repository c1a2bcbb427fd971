package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mtlprog/helpdesk/internal/domain"
)

var validate = newValidate()

// newValidate reports fields by their JSON names.
func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validator is implemented by every request body.
type Validator interface {
	Validate() error
}

// SolicitanteRequest identifies the solicitante opening a chamado.
type SolicitanteRequest struct {
	CPF   string `json:"cpf" validate:"required,max=14"`
	Nome  string `json:"nome" validate:"max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

// CreateChamadoRequest represents the request body for POST /chamado.
// Setting ti, problemaId or patrimonio opens an IT chamado.
type CreateChamadoRequest struct {
	Descricao   string             `json:"descricao" validate:"required,max=4000"`
	SetorID     int64              `json:"setorId" validate:"required,gt=0"`
	Solicitante SolicitanteRequest `json:"solicitante"`
	Prioridade  string             `json:"prioridade,omitempty" validate:"omitempty,oneof=BAIXA MEDIA ALTA"`
	TI          bool               `json:"ti,omitempty"`
	ProblemaID  *int64             `json:"problemaId,omitempty" validate:"omitempty,gt=0"`
	Patrimonio  string             `json:"patrimonio,omitempty" validate:"max=100"`
}

// Validate implements Validator.
func (r *CreateChamadoRequest) Validate() error {
	return validationError(validate.Struct(r))
}

// IsTI reports whether the request opens an IT chamado.
func (r *CreateChamadoRequest) IsTI() bool {
	return r.TI || r.ProblemaID != nil || r.Patrimonio != ""
}

// TransferidoRequest holds the target of a transfer.
type TransferidoRequest struct {
	SetorID int64  `json:"setorId" validate:"required,gt=0"`
	UserID  *int64 `json:"userId,omitempty" validate:"omitempty,gt=0"`
}

// UpdateSituacaoRequest represents the request body for PUT /chamado/{id}/situacao.
// Situacao TRANSFERIDO requires transferido.
type UpdateSituacaoRequest struct {
	Situacao    string              `json:"situacao" validate:"required,oneof=ABERTO EM_ATENDIMENTO PENDENTE TRANSFERIDO CONCLUIDO CANCELADO"`
	Descricao   *string             `json:"descricao,omitempty" validate:"omitempty,max=4000"`
	Prioridade  string              `json:"prioridade,omitempty" validate:"omitempty,oneof=BAIXA MEDIA ALTA"`
	Transferido *TransferidoRequest `json:"transferido,omitempty" validate:"required_if=Situacao TRANSFERIDO"`
}

// Validate implements Validator.
func (r *UpdateSituacaoRequest) Validate() error {
	return validationError(validate.Struct(r))
}

// SignInRequest represents the request body for POST /auth/signin.
type SignInRequest struct {
	Username string `json:"username" validate:"required,min=4,max=20"`
	Password string `json:"password" validate:"required,min=8"`
}

// Validate implements Validator.
func (r *SignInRequest) Validate() error {
	return validationError(validate.Struct(r))
}

// validationError turns validator output into a domain.ErrInvalidInput with
// one "field: rule" item per failure.
func validationError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonPath(fe.Namespace())
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

// jsonPath drops the root struct name from a validator namespace.
func jsonPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
