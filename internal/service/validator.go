package service

import (
	"fmt"

	"github.com/mtlprog/helpdesk/internal/config"
	"github.com/mtlprog/helpdesk/internal/domain"
)

// Validator holds the state machine rules for chamado operations.
type Validator struct {
	policy config.TerminalPolicy
}

// NewValidator creates a new Validator.
func NewValidator(policy config.TerminalPolicy) *Validator {
	if policy == "" {
		policy = config.TerminalPolicyReject
	}
	return &Validator{policy: policy}
}

// Policy returns the configured terminal policy.
func (v *Validator) Policy() config.TerminalPolicy {
	return v.policy
}

// CheckProblema verifies the declared problema belongs to the setor.
func (v *Validator) CheckProblema(setor *domain.Setor, problemaID *int64) error {
	if problemaID == nil {
		return nil
	}
	if !setor.HasProblema(*problemaID) {
		return fmt.Errorf("%w: problema %d is not in setor %d", domain.ErrProblemaNotFound, *problemaID, setor.ID)
	}
	return nil
}

// CheckSituacaoChange validates the target of a plain situacao update.
func (v *Validator) CheckSituacaoChange(next domain.Situacao) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSituacao, next)
	}
	if next == domain.SituacaoTransferido {
		return fmt.Errorf("%w: %s requires a transfer", domain.ErrInvalidSituacao, next)
	}
	return nil
}

// CanUpdateSituacao validates a situacao change on a loaded chamado.
func (v *Validator) CanUpdateSituacao(c *domain.Chamado) error {
	return v.checkTerminal(c)
}

// CanTransfer validates a transfer. IT chamados are never transferred.
func (v *Validator) CanTransfer(c *domain.Chamado) error {
	if c.TI {
		return fmt.Errorf("%w: chamado %d", domain.ErrTransferTI, c.ID)
	}
	return v.checkTerminal(c)
}

// CanCancel validates a cancellation by the solicitante. Ownership is
// reported as not found so that foreign chamados stay invisible.
// The returned bool is true when the cancellation is an accepted no-op.
func (v *Validator) CanCancel(c *domain.Chamado, solicitante *domain.Solicitante) (bool, error) {
	if solicitante == nil || !c.IsOwnedBy(solicitante.ID) {
		return false, domain.ErrChamadoNotFound
	}
	if c.Situacao == domain.SituacaoCancelado && v.policy == config.TerminalPolicyAllow {
		return true, nil
	}
	return false, v.checkTerminal(c)
}

func (v *Validator) checkTerminal(c *domain.Chamado) error {
	if c.Situacao.IsTerminal() && v.policy != config.TerminalPolicyAllow {
		return fmt.Errorf("%w: chamado %d is %s", domain.ErrChamadoTerminal, c.ID, c.Situacao)
	}
	return nil
}
