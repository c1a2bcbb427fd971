package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/mtlprog/helpdesk/internal/notify"
	"github.com/mtlprog/helpdesk/internal/repository"
)

// TxBeginner opens the transaction a lifecycle operation runs in.
// *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ChamadoStore owns chamado rows.
type ChamadoStore interface {
	GetByID(ctx context.Context, db repository.DBTX, id int64) (*domain.Chamado, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Chamado, error)
	GetForSolicitante(ctx context.Context, id, solicitanteID int64) (*domain.Chamado, error)
	Create(ctx context.Context, tx pgx.Tx, c *domain.Chamado) error
	UpdateAssignment(ctx context.Context, tx pgx.Tx, c *domain.Chamado) error
	List(ctx context.Context, filters repository.ChamadoListFilters) ([]*domain.Chamado, int, error)
}

// ChamadoTIStore owns the IT sub-records.
type ChamadoTIStore interface {
	Create(ctx context.Context, tx pgx.Tx, ti *domain.ChamadoTI) error
	GetByID(ctx context.Context, db repository.DBTX, id int64) (*domain.ChamadoTI, error)
}

// AlteracaoRecorder appends audit entries. Appending an entry also moves the
// chamado's situacao and prioridade to the entry's values.
type AlteracaoRecorder interface {
	Append(ctx context.Context, tx pgx.Tx, a *domain.Alteracao) error
	ListByChamado(ctx context.Context, db repository.DBTX, chamadoID int64) ([]domain.Alteracao, error)
}

// SetorCatalog resolves setores and their problemas.
type SetorCatalog interface {
	GetByID(ctx context.Context, db repository.DBTX, id int64) (*domain.Setor, error)
}

// SolicitanteRegistry resolves or creates solicitantes.
type SolicitanteRegistry interface {
	FindOrCreate(ctx context.Context, tx pgx.Tx, s *domain.Solicitante) error
	GetByID(ctx context.Context, db repository.DBTX, id int64) (*domain.Solicitante, error)
}

// Notifier is told about committed lifecycle changes.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event) error
}

// UserStore looks up staff users.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}
