package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/helpdesk/internal/config"
	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/mtlprog/helpdesk/internal/metrics"
	"github.com/mtlprog/helpdesk/internal/notify"
	"github.com/mtlprog/helpdesk/internal/repository"
)

// ChamadoServiceDeps groups the collaborators of ChamadoService.
type ChamadoServiceDeps struct {
	DB           repository.DBTX
	Tx           TxBeginner
	Chamados     ChamadoStore
	ChamadosTI   ChamadoTIStore
	Alteracoes   AlteracaoRecorder
	Setores      SetorCatalog
	Solicitantes SolicitanteRegistry
	Notifier     Notifier
	Lifecycle    config.LifecycleConfig
}

// ChamadoService runs the chamado lifecycle. Every mutating operation is a
// single transaction: the chamado row and its audit trail are committed
// together or not at all.
type ChamadoService struct {
	db           repository.DBTX
	txBeginner   TxBeginner
	chamados     ChamadoStore
	chamadosTI   ChamadoTIStore
	alteracoes   AlteracaoRecorder
	setores      SetorCatalog
	solicitantes SolicitanteRegistry
	notifier     Notifier
	validator    *Validator
	pageSize     int
}

// NewChamadoService creates a new ChamadoService.
func NewChamadoService(deps ChamadoServiceDeps) *ChamadoService {
	pageSize := deps.Lifecycle.DefaultPageSize
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}
	svc := &ChamadoService{
		db:           deps.DB,
		txBeginner:   deps.Tx,
		chamados:     deps.Chamados,
		chamadosTI:   deps.ChamadosTI,
		alteracoes:   deps.Alteracoes,
		setores:      deps.Setores,
		solicitantes: deps.Solicitantes,
		notifier:     deps.Notifier,
		validator:    NewValidator(deps.Lifecycle.TerminalPolicy),
		pageSize:     pageSize,
	}

	slog.Info("chamado engine configured",
		"terminal_policy", svc.validator.Policy(),
		"page_size", pageSize,
		"notifications", deps.Notifier != nil,
	)

	return svc
}

// TIDetails carries the IT-specific part of a new chamado.
type TIDetails struct {
	ProblemaID *int64
	Patrimonio string
}

// CreateChamadoParams holds the input of Create.
type CreateChamadoParams struct {
	Descricao   string
	SetorID     int64
	Solicitante domain.Solicitante
	Prioridade  domain.Prioridade
	TI          *TIDetails
}

// UpdateSituacaoParams holds the input of UpdateSituacao.
type UpdateSituacaoParams struct {
	Situacao   domain.Situacao
	Descricao  *string
	Prioridade domain.Prioridade
}

// TransferParams holds the input of TransferChamado.
type TransferParams struct {
	SetorID    int64
	UserID     *int64
	Descricao  *string
	Prioridade domain.Prioridade
}

// inTx runs fn inside a transaction. The transaction is released exactly once
// on every path by the deferred rollback, which is a no-op after commit.
// Categorized domain errors pass through; anything else becomes ErrInternal.
func (s *ChamadoService) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := s.txBeginner.Begin(ctx)
	if err != nil {
		return s.internal(op, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "operation", op, "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		if domain.IsCategorized(err) {
			return err
		}
		return s.internal(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return s.internal(op, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// internal logs the cause and hides it behind ErrInternal.
func (s *ChamadoService) internal(op string, cause error) error {
	slog.Error("chamado operation failed", "operation", op, "error", cause)
	return fmt.Errorf("%w: %s failed", domain.ErrInternal, op)
}

// Create opens a new chamado in situacao ABERTO with its first alteracao.
func (s *ChamadoService) Create(ctx context.Context, p CreateChamadoParams) (chamado *domain.Chamado, err error) {
	defer func() { metrics.ObserveOperation("create", err) }()

	if strings.TrimSpace(p.Descricao) == "" {
		return nil, fmt.Errorf("%w: descricao is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(p.Solicitante.CPF) == "" {
		return nil, fmt.Errorf("%w: solicitante cpf is required", domain.ErrInvalidInput)
	}
	prioridade, err := resolvePrioridade(p.Prioridade, domain.PrioridadeMedia)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, "create", func(tx pgx.Tx) error {
		setor, err := s.setores.GetByID(ctx, tx, p.SetorID)
		if err != nil {
			return err
		}

		var problemaID *int64
		if p.TI != nil {
			problemaID = p.TI.ProblemaID
		}
		if err := s.validator.CheckProblema(setor, problemaID); err != nil {
			return err
		}

		solicitante := p.Solicitante
		if err := s.solicitantes.FindOrCreate(ctx, tx, &solicitante); err != nil {
			return fmt.Errorf("find or create solicitante: %w", err)
		}

		c := &domain.Chamado{
			Descricao:     p.Descricao,
			Situacao:      domain.SituacaoAberto,
			Prioridade:    prioridade,
			SetorID:       setor.ID,
			SolicitanteID: &solicitante.ID,
			Solicitante:   &solicitante,
		}

		if p.TI != nil {
			ti := &domain.ChamadoTI{ProblemaID: p.TI.ProblemaID, Patrimonio: p.TI.Patrimonio}
			if err := s.chamadosTI.Create(ctx, tx, ti); err != nil {
				return fmt.Errorf("create chamado_ti: %w", err)
			}
			c.TI = true
			c.ChamadoTIID = &ti.ID
			c.ChamadoTI = ti
		}

		if err := s.chamados.Create(ctx, tx, c); err != nil {
			return fmt.Errorf("create chamado: %w", err)
		}

		descricao := p.Descricao
		alteracao := &domain.Alteracao{
			ChamadoID:  c.ID,
			Descricao:  &descricao,
			Situacao:   domain.SituacaoAberto,
			Prioridade: prioridade,
		}
		if err := s.alteracoes.Append(ctx, tx, alteracao); err != nil {
			return fmt.Errorf("append alteracao: %w", err)
		}
		applyAlteracao(c, alteracao)
		c.Alteracoes = []domain.Alteracao{*alteracao}

		chamado = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("chamado created",
		"chamado_id", chamado.ID,
		"setor_id", chamado.SetorID,
		"ti", chamado.TI,
	)

	s.notify(ctx, notify.EventChamadoCreated, chamado, nil)

	return chamado, nil
}

// UpdateSituacao records a new situacao for the chamado on behalf of a staff user.
// Transfers must go through TransferChamado.
func (s *ChamadoService) UpdateSituacao(
	ctx context.Context,
	id int64,
	p UpdateSituacaoParams,
	actor *domain.User,
) (chamado *domain.Chamado, err error) {
	defer func() { metrics.ObserveOperation("update_situacao", err) }()

	if actor == nil {
		return nil, fmt.Errorf("%w: acting user is required", domain.ErrInvalidInput)
	}
	if err := s.validator.CheckSituacaoChange(p.Situacao); err != nil {
		return nil, err
	}
	if p.Prioridade != "" && !p.Prioridade.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPrioridade, p.Prioridade)
	}

	err = s.inTx(ctx, "update_situacao", func(tx pgx.Tx) error {
		c, err := s.chamados.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := s.validator.CanUpdateSituacao(c); err != nil {
			return err
		}

		alteracao := newAlteracao(c, p.Situacao, p.Descricao, p.Prioridade, &actor.ID)
		if err := s.alteracoes.Append(ctx, tx, alteracao); err != nil {
			return fmt.Errorf("append alteracao: %w", err)
		}
		applyAlteracao(c, alteracao)

		if err := s.loadDetails(ctx, tx, c); err != nil {
			return err
		}

		chamado = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("chamado situacao changed",
		"chamado_id", chamado.ID,
		"situacao", chamado.Situacao,
		"user_id", actor.ID,
	)

	s.notify(ctx, notify.EventChamadoUpdated, chamado, &actor.ID)

	return chamado, nil
}

// TransferChamado moves a non-IT chamado to another setor and optionally
// assigns it to a staff user. The row stays locked until commit.
func (s *ChamadoService) TransferChamado(
	ctx context.Context,
	id int64,
	p TransferParams,
	actor *domain.User,
) (chamado *domain.Chamado, err error) {
	defer func() { metrics.ObserveOperation("transfer", err) }()

	if actor == nil {
		return nil, fmt.Errorf("%w: acting user is required", domain.ErrInvalidInput)
	}
	if p.Prioridade != "" && !p.Prioridade.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPrioridade, p.Prioridade)
	}

	err = s.inTx(ctx, "transfer", func(tx pgx.Tx) error {
		c, err := s.chamados.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := s.validator.CanTransfer(c); err != nil {
			return err
		}

		setor, err := s.setores.GetByID(ctx, tx, p.SetorID)
		if err != nil {
			return err
		}

		c.SetorID = setor.ID
		if p.UserID != nil {
			userID := *p.UserID
			c.UserID = &userID
		}

		if err := s.chamados.UpdateAssignment(ctx, tx, c); err != nil {
			if domain.IsCategorized(err) {
				return err
			}
			return fmt.Errorf("save chamado: %w", err)
		}

		alteracao := newAlteracao(c, domain.SituacaoTransferido, p.Descricao, p.Prioridade, &actor.ID)
		if err := s.alteracoes.Append(ctx, tx, alteracao); err != nil {
			return fmt.Errorf("append alteracao: %w", err)
		}
		applyAlteracao(c, alteracao)

		if err := s.loadDetails(ctx, tx, c); err != nil {
			return err
		}

		chamado = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("chamado transferred",
		"chamado_id", chamado.ID,
		"setor_id", chamado.SetorID,
		"assigned_user_id", chamado.UserID,
		"user_id", actor.ID,
	)

	s.notify(ctx, notify.EventChamadoTransferred, chamado, &actor.ID)

	return chamado, nil
}

// CancelChamadoSituacao cancels a chamado on behalf of the solicitante who opened it.
// Chamados of other solicitantes are reported as not found.
func (s *ChamadoService) CancelChamadoSituacao(
	ctx context.Context,
	id int64,
	solicitante *domain.Solicitante,
) (chamado *domain.Chamado, err error) {
	defer func() { metrics.ObserveOperation("cancel", err) }()

	var noop bool
	err = s.inTx(ctx, "cancel", func(tx pgx.Tx) error {
		c, err := s.chamados.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		noop, err = s.validator.CanCancel(c, solicitante)
		if err != nil {
			return err
		}

		if !noop {
			alteracao := newAlteracao(c, domain.SituacaoCancelado, nil, "", nil)
			if err := s.alteracoes.Append(ctx, tx, alteracao); err != nil {
				return fmt.Errorf("append alteracao: %w", err)
			}
			applyAlteracao(c, alteracao)
		}

		if err := s.loadDetails(ctx, tx, c); err != nil {
			return err
		}

		chamado = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if noop {
		slog.Info("chamado already cancelled", "chamado_id", chamado.ID)
		return chamado, nil
	}

	slog.Info("chamado cancelled",
		"chamado_id", chamado.ID,
		"solicitante_id", solicitante.ID,
	)

	s.notify(ctx, notify.EventChamadoCancelled, chamado, nil)

	return chamado, nil
}

// loadDetails fills the audit trail, the IT sub-record and the solicitante.
func (s *ChamadoService) loadDetails(ctx context.Context, db repository.DBTX, c *domain.Chamado) error {
	alteracoes, err := s.alteracoes.ListByChamado(ctx, db, c.ID)
	if err != nil {
		return fmt.Errorf("list alteracoes: %w", err)
	}
	c.Alteracoes = alteracoes

	if c.ChamadoTIID != nil && c.ChamadoTI == nil {
		ti, err := s.chamadosTI.GetByID(ctx, db, *c.ChamadoTIID)
		if err != nil {
			return fmt.Errorf("get chamado_ti: %w", err)
		}
		c.ChamadoTI = ti
	}

	if c.SolicitanteID != nil && c.Solicitante == nil {
		solicitante, err := s.solicitantes.GetByID(ctx, db, *c.SolicitanteID)
		if err != nil {
			return fmt.Errorf("get solicitante: %w", err)
		}
		c.Solicitante = solicitante
	}

	return nil
}

// notify hands the committed state to the fan-out. Failures are logged only.
func (s *ChamadoService) notify(ctx context.Context, eventType notify.EventType, c *domain.Chamado, actorID *int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notify.NewEvent(eventType, c, actorID)); err != nil {
		slog.Warn("chamado notification failed",
			"chamado_id", c.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}

// newAlteracao builds the next audit entry. A missing prioridade carries the
// chamado's current one forward so the latest entry always holds the
// effective value.
func newAlteracao(
	c *domain.Chamado,
	situacao domain.Situacao,
	descricao *string,
	prioridade domain.Prioridade,
	userID *int64,
) *domain.Alteracao {
	if prioridade == "" {
		prioridade = c.Prioridade
	}
	if prioridade == "" {
		prioridade = domain.PrioridadeMedia
	}
	return &domain.Alteracao{
		ChamadoID:  c.ID,
		UserID:     userID,
		Descricao:  descricao,
		Situacao:   situacao,
		Prioridade: prioridade,
	}
}

// applyAlteracao mirrors, in memory, what the store does when an entry is appended.
func applyAlteracao(c *domain.Chamado, a *domain.Alteracao) {
	c.Situacao = a.Situacao
	c.Prioridade = a.Prioridade
}

func resolvePrioridade(p, fallback domain.Prioridade) (domain.Prioridade, error) {
	if p == "" {
		return fallback, nil
	}
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidPrioridade, p)
	}
	return p, nil
}
