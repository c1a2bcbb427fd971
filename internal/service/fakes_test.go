package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/mtlprog/helpdesk/internal/notify"
	"github.com/mtlprog/helpdesk/internal/repository"
)

// memState is everything a transaction can change.
type memState struct {
	chamados     map[int64]domain.Chamado
	alteracoes   []domain.Alteracao
	tis          map[int64]domain.ChamadoTI
	solicitantes map[int64]domain.Solicitante
	nextID       int64
}

func (s memState) clone() memState {
	return memState{
		chamados:     maps.Clone(s.chamados),
		alteracoes:   slices.Clone(s.alteracoes),
		tis:          maps.Clone(s.tis),
		solicitantes: maps.Clone(s.solicitantes),
		nextID:       s.nextID,
	}
}

// memDB is an in-memory store with transactional snapshots. Appending an
// alteracao moves the chamado's situacao and prioridade like the database
// trigger does.
type memDB struct {
	state   memState
	snap    *memState
	setores map[int64]domain.Setor

	fail      map[string]error
	beginErr  error
	commitErr error

	txs []*fakeTx
}

func newMemDB() *memDB {
	return &memDB{
		state: memState{
			chamados:     map[int64]domain.Chamado{},
			tis:          map[int64]domain.ChamadoTI{},
			solicitantes: map[int64]domain.Solicitante{},
			nextID:       100,
		},
		setores: map[int64]domain.Setor{},
		fail:    map[string]error{},
	}
}

func (db *memDB) id() int64 {
	db.state.nextID++
	return db.state.nextID
}

func (db *memDB) check(op string) error {
	if err, ok := db.fail[op]; ok {
		return err
	}
	return nil
}

func (db *memDB) Begin(_ context.Context) (pgx.Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	snap := db.state.clone()
	db.snap = &snap
	tx := &fakeTx{db: db}
	db.txs = append(db.txs, tx)
	return tx, nil
}

func (db *memDB) alteracoesOf(chamadoID int64) []domain.Alteracao {
	var out []domain.Alteracao
	for _, a := range db.state.alteracoes {
		if a.ChamadoID == chamadoID {
			out = append(out, a)
		}
	}
	return out
}

// fakeTx tracks how the engine ends its transactions. The embedded pgx.Tx is
// nil: stores never touch it.
type fakeTx struct {
	pgx.Tx
	db        *memDB
	closed    bool
	committed bool
	releases  int
}

func (t *fakeTx) Commit(_ context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.releases++
	if t.db.commitErr != nil {
		t.db.state = *t.db.snap
		t.db.snap = nil
		return t.db.commitErr
	}
	t.committed = true
	t.db.snap = nil
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.releases++
	t.db.state = *t.db.snap
	t.db.snap = nil
	return nil
}

type memChamados struct{ db *memDB }

func (s memChamados) get(id int64) (*domain.Chamado, error) {
	c, ok := s.db.state.chamados[id]
	if !ok {
		return nil, domain.ErrChamadoNotFound
	}
	return &c, nil
}

func (s memChamados) GetByID(_ context.Context, _ repository.DBTX, id int64) (*domain.Chamado, error) {
	if err := s.db.check("chamado.get"); err != nil {
		return nil, err
	}
	return s.get(id)
}

func (s memChamados) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id int64) (*domain.Chamado, error) {
	if err := s.db.check("chamado.get_for_update"); err != nil {
		return nil, err
	}
	return s.get(id)
}

func (s memChamados) GetForSolicitante(_ context.Context, id, solicitanteID int64) (*domain.Chamado, error) {
	c, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if !c.IsOwnedBy(solicitanteID) {
		return nil, domain.ErrChamadoNotFound
	}
	return c, nil
}

func (s memChamados) Create(_ context.Context, _ pgx.Tx, c *domain.Chamado) error {
	if err := s.db.check("chamado.create"); err != nil {
		return err
	}
	c.ID = s.db.id()
	c.CreatedAt = time.Now()
	row := *c
	row.Alteracoes, row.ChamadoTI, row.Solicitante = nil, nil, nil
	s.db.state.chamados[c.ID] = row
	return nil
}

func (s memChamados) UpdateAssignment(_ context.Context, _ pgx.Tx, c *domain.Chamado) error {
	if err := s.db.check("chamado.update_assignment"); err != nil {
		return err
	}
	row, ok := s.db.state.chamados[c.ID]
	if !ok {
		return domain.ErrChamadoNotFound
	}
	row.SetorID = c.SetorID
	row.UserID = c.UserID
	s.db.state.chamados[c.ID] = row
	return nil
}

func (s memChamados) List(_ context.Context, f repository.ChamadoListFilters) ([]*domain.Chamado, int, error) {
	if err := s.db.check("chamado.list"); err != nil {
		return nil, 0, err
	}

	var matched []*domain.Chamado
	for _, c := range s.db.state.chamados {
		if f.SolicitanteID != nil && !c.IsOwnedBy(*f.SolicitanteID) {
			continue
		}
		if f.UserID != nil {
			assigned := c.UserID != nil && *c.UserID == *f.UserID
			inSetor := c.UserID == nil && f.UserSetorID != nil && c.SetorID == *f.UserSetorID
			if !assigned && !inSetor {
				continue
			}
		}
		if len(f.Situacoes) > 0 && !slices.Contains(f.Situacoes, c.Situacao) {
			continue
		}
		matched = append(matched, &c)
	}
	slices.SortFunc(matched, func(a, b *domain.Chamado) int { return int(b.ID - a.ID) })

	total := len(matched)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

type memTIs struct{ db *memDB }

func (s memTIs) Create(_ context.Context, _ pgx.Tx, ti *domain.ChamadoTI) error {
	if err := s.db.check("chamado_ti.create"); err != nil {
		return err
	}
	ti.ID = s.db.id()
	ti.CreatedAt = time.Now()
	s.db.state.tis[ti.ID] = *ti
	return nil
}

func (s memTIs) GetByID(_ context.Context, _ repository.DBTX, id int64) (*domain.ChamadoTI, error) {
	ti, ok := s.db.state.tis[id]
	if !ok {
		return nil, fmt.Errorf("chamado_ti %d missing", id)
	}
	return &ti, nil
}

type memAlteracoes struct{ db *memDB }

func (s memAlteracoes) Append(_ context.Context, _ pgx.Tx, a *domain.Alteracao) error {
	if err := s.db.check("alteracao.append"); err != nil {
		return err
	}
	c, ok := s.db.state.chamados[a.ChamadoID]
	if !ok {
		return errors.New("alteracao references missing chamado")
	}
	a.ID = s.db.id()
	a.Data = time.Now()
	s.db.state.alteracoes = append(s.db.state.alteracoes, *a)

	c.Situacao = a.Situacao
	c.Prioridade = a.Prioridade
	s.db.state.chamados[c.ID] = c
	return nil
}

func (s memAlteracoes) ListByChamado(_ context.Context, _ repository.DBTX, chamadoID int64) ([]domain.Alteracao, error) {
	if err := s.db.check("alteracao.list"); err != nil {
		return nil, err
	}
	return s.db.alteracoesOf(chamadoID), nil
}

type memSetores struct{ db *memDB }

func (s memSetores) GetByID(_ context.Context, _ repository.DBTX, id int64) (*domain.Setor, error) {
	setor, ok := s.db.setores[id]
	if !ok {
		return nil, fmt.Errorf("%w: setor %d", domain.ErrSetorNotFound, id)
	}
	return &setor, nil
}

type memSolicitantes struct{ db *memDB }

func (s memSolicitantes) FindOrCreate(_ context.Context, _ pgx.Tx, sol *domain.Solicitante) error {
	if err := s.db.check("solicitante.find_or_create"); err != nil {
		return err
	}
	for _, existing := range s.db.state.solicitantes {
		if existing.CPF == sol.CPF {
			*sol = existing
			return nil
		}
	}
	sol.ID = s.db.id()
	sol.CreatedAt = time.Now()
	s.db.state.solicitantes[sol.ID] = *sol
	return nil
}

func (s memSolicitantes) GetByID(_ context.Context, _ repository.DBTX, id int64) (*domain.Solicitante, error) {
	sol, ok := s.db.state.solicitantes[id]
	if !ok {
		return nil, domain.ErrSolicitanteNotFound
	}
	return &sol, nil
}

type recordingNotifier struct {
	events []notify.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	n.events = append(n.events, e)
	return n.err
}

// heldSink blocks every delivery until release is closed.
type heldSink struct {
	release   chan struct{}
	delivered chan notify.Event
}

func (heldSink) Name() string { return "held" }

func (k *heldSink) Send(_ context.Context, e notify.Event) error {
	<-k.release
	k.delivered <- e
	return nil
}

type memUsers struct {
	users map[int64]*domain.User
}

func (s memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}
