package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hibiken/asynq"
	"github.com/mtlprog/helpdesk/internal/config"
	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func testChamado() *domain.Chamado {
	return &domain.Chamado{
		ID:            7,
		Descricao:     "Impressora sem toner",
		Situacao:      domain.SituacaoEmAtendimento,
		Prioridade:    domain.PrioridadeAlta,
		SetorID:       3,
		SolicitanteID: ptr(int64(11)),
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Alteracoes: []domain.Alteracao{
			{ID: 1, ChamadoID: 7, Situacao: domain.SituacaoAberto, Prioridade: domain.PrioridadeAlta},
			{ID: 2, ChamadoID: 7, UserID: ptr(int64(5)), Descricao: ptr("iniciando"), Situacao: domain.SituacaoEmAtendimento, Prioridade: domain.PrioridadeAlta},
		},
		Solicitante: &domain.Solicitante{ID: 11, CPF: "12345678900", Nome: "Ana", Email: "ana@example.com"},
	}
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(EventChamadoUpdated, testChamado(), ptr(int64(5)))

	assert.NotEmpty(t, e.ID.String())
	assert.Equal(t, EventChamadoUpdated, e.Type)
	assert.Equal(t, int64(7), e.ChamadoID)
	assert.Equal(t, "blue", e.Chamado.Color)
	require.Len(t, e.Chamado.Alteracoes, 2)
	assert.Equal(t, domain.SituacaoAberto, e.Chamado.Alteracoes[0].Situacao)
	assert.Equal(t, domain.PrioridadeAlta, e.Chamado.Alteracoes[0].Prioridade)
	assert.Equal(t, int64(5), *e.Chamado.Alteracoes[1].UserID)
	require.NotNil(t, e.Chamado.LastAlteracao)
	assert.Equal(t, int64(2), e.Chamado.LastAlteracao.ID)
	assert.Equal(t, "iniciando", *e.Chamado.LastAlteracao.Descricao)
	require.NotNil(t, e.Recipient)
	assert.Equal(t, "ana@example.com", e.Recipient.Email)

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ana@example.com")
	assert.NotContains(t, string(raw), "12345678900")

	var decoded struct {
		Chamado struct {
			Alteracoes []json.RawMessage `json:"alteracoes"`
		} `json:"chamado"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded.Chamado.Alteracoes, 2)
}

func TestNewEvent_NoAlteracoes(t *testing.T) {
	c := testChamado()
	c.Alteracoes = nil

	e := NewEvent(EventChamadoCreated, c, nil)

	assert.NotNil(t, e.Chamado.Alteracoes)
	assert.Empty(t, e.Chamado.Alteracoes)
	assert.Nil(t, e.Chamado.LastAlteracao)
}

type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

type blockingSink struct{}

func (blockingSink) Name() string { return "slow" }

func (blockingSink) Send(ctx context.Context, _ Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestFanOut_DeliversToAllSinks(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	f := NewFanOut([]Sink{a, nil, b})

	require.NoError(t, f.Notify(context.Background(), NewEvent(EventChamadoCreated, testChamado(), nil)))
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestFanOut_FailingSinkDoesNotStopOthers(t *testing.T) {
	bad := &recordingSink{name: "bad", err: errors.New("broker down")}
	good := &recordingSink{name: "good"}
	f := NewFanOut([]Sink{bad, good})

	err := f.Notify(context.Background(), NewEvent(EventChamadoCreated, testChamado(), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: broker down")
	assert.Len(t, good.events, 1)
}

func TestFanOut_SinkTimeout(t *testing.T) {
	f := NewFanOut([]Sink{blockingSink{}}, WithSinkTimeout(20*time.Millisecond))

	err := f.Notify(context.Background(), NewEvent(EventChamadoCreated, testChamado(), nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFanOut_IgnoresCallerCancellation(t *testing.T) {
	sink := &recordingSink{name: "a"}
	f := NewFanOut([]Sink{sink})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.Notify(ctx, NewEvent(EventChamadoCreated, testChamado(), nil)))
	assert.Len(t, sink.events, 1)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSink_Send(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w)
	e := NewEvent(EventChamadoTransferred, testChamado(), ptr(int64(5)))

	require.NoError(t, sink.Send(context.Background(), e))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "7", string(w.msgs[0].Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, EventChamadoTransferred, decoded.Type)
}

func TestKafkaSink_WriteError(t *testing.T) {
	sink := NewKafkaSink(&fakeWriter{err: errors.New("leader not available")})
	err := sink.Send(context.Background(), NewEvent(EventChamadoCreated, testChamado(), nil))
	assert.ErrorContains(t, err, "leader not available")
}

type fakePublisher struct {
	channel string
	payload any
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	p.channel = channel
	p.payload = message
	cmd := redis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisSink_Send(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewRedisSink(pub, "helpdesk:chamados")

	require.NoError(t, sink.Send(context.Background(), NewEvent(EventChamadoCancelled, testChamado(), nil)))
	assert.Equal(t, "helpdesk:chamados", pub.channel)
	assert.Contains(t, string(pub.payload.([]byte)), `"chamado.cancelled"`)

	pub.err = errors.New("connection refused")
	assert.Error(t, sink.Send(context.Background(), NewEvent(EventChamadoCancelled, testChamado(), nil)))
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	if q.err != nil {
		return nil, q.err
	}
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestEmailSink_Send(t *testing.T) {
	q := &fakeEnqueuer{}
	sink := NewEmailSink(q, "chamado")

	require.NoError(t, sink.Send(context.Background(), NewEvent(EventChamadoUpdated, testChamado(), ptr(int64(5)))))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TypeChamadoEmail, q.tasks[0].Type())

	var p EmailPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &p))
	assert.Equal(t, "ana@example.com", p.To)
	assert.Equal(t, domain.SituacaoEmAtendimento, p.Situacao)
	assert.Equal(t, "iniciando", p.Nota)
}

func TestEmailSink_SkipsWithoutEmail(t *testing.T) {
	q := &fakeEnqueuer{}
	sink := NewEmailSink(q, "chamado")

	c := testChamado()
	c.Solicitante.Email = ""

	require.NoError(t, sink.Send(context.Background(), NewEvent(EventChamadoUpdated, c, nil)))
	assert.Empty(t, q.tasks)
}

type fakeMailer struct {
	sent []Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func TestEmailTaskHandler_ProcessTask(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewEmailTaskHandler(mailer)

	payload, err := json.Marshal(EmailPayload{
		To:        "ana@example.com",
		Nome:      "Ana <script>",
		EventType: EventChamadoUpdated,
		ChamadoID: 7,
		Descricao: "Impressora sem toner",
		Situacao:  domain.SituacaoConcluido,
		Color:     "green",
	})
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(TypeChamadoEmail, payload)))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Chamado #7: CONCLUIDO", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].HTML, "Impressora sem toner")
	assert.NotContains(t, mailer.sent[0].HTML, "<script>")
}

func TestEmailTaskHandler_BadPayloadSkipsRetry(t *testing.T) {
	h := NewEmailTaskHandler(&fakeMailer{})

	err := h.ProcessTask(context.Background(), asynq.NewTask(TypeChamadoEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEmailTaskHandler_MailerErrorIsRetried(t *testing.T) {
	h := NewEmailTaskHandler(&fakeMailer{err: errors.New("421 try later")})

	payload, _ := json.Marshal(EmailPayload{To: "ana@example.com", ChamadoID: 7, EventType: EventChamadoCreated})
	err := h.ProcessTask(context.Background(), asynq.NewTask(TypeChamadoEmail, payload))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

// smtpSession is what the in-process relay saw.
type smtpSession struct {
	commands []string
	body     string
}

// serveSMTP plays a minimal relay on conn that advertises AUTH PLAIN and
// accepts one message.
func serveSMTP(conn net.Conn, done chan<- smtpSession) {
	var sess smtpSession
	defer func() {
		_ = conn.Close()
		done <- sess
	}()

	tp := textproto.NewConn(conn)
	reply := func(lines ...string) {
		for _, l := range lines {
			_ = tp.PrintfLine("%s", l)
		}
	}

	reply("220 localhost ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.Fields(line)[0])
		sess.commands = append(sess.commands, cmd)

		switch cmd {
		case "EHLO":
			reply("250-localhost", "250 AUTH PLAIN")
		case "AUTH":
			reply("235 2.7.0 accepted")
		case "MAIL", "RCPT":
			reply("250 2.1.0 ok")
		case "DATA":
			reply("354 go ahead")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			sess.body = string(body)
			reply("250 2.0.0 queued")
		case "QUIT":
			reply("221 2.0.0 bye")
			return
		default:
			reply("502 5.5.1 unrecognized")
		}
	}
}

func smtpTestConfig() config.SMTPConfig {
	return config.SMTPConfig{
		Host: "localhost", Port: "2525", User: "u", Password: "p",
		From: "noreply@example.com", FromName: "Helpdesk",
	}
}

func TestSMTPMailer(t *testing.T) {
	t.Run("without credentials only logs", func(t *testing.T) {
		m := NewSMTPMailer(config.SMTPConfig{Host: "localhost", Port: "587"})
		m.dial = func(context.Context, string, string) (net.Conn, error) {
			t.Fatal("dial must not be called")
			return nil, nil
		}
		assert.NoError(t, m.Send(context.Background(), Message{To: "ana@example.com"}))
	})

	t.Run("with credentials sends", func(t *testing.T) {
		m := NewSMTPMailer(smtpTestConfig())
		done := make(chan smtpSession, 1)
		var gotAddr string
		m.dial = func(_ context.Context, network, addr string) (net.Conn, error) {
			gotAddr = addr
			client, server := net.Pipe()
			go serveSMTP(server, done)
			return client, nil
		}

		require.NoError(t, m.Send(context.Background(), Message{To: "ana@example.com", Subject: "Chamado #7", HTML: "<p>ok</p>"}))

		sess := <-done
		assert.Equal(t, "localhost:2525", gotAddr)
		assert.Equal(t, []string{"EHLO", "AUTH", "MAIL", "RCPT", "DATA", "QUIT"}, sess.commands)
		assert.Contains(t, sess.body, "Subject: Chamado #7\n")
		assert.Contains(t, sess.body, "<p>ok</p>")
	})

	t.Run("stalled relay stops at the context deadline", func(t *testing.T) {
		m := NewSMTPMailer(smtpTestConfig())
		client, server := net.Pipe()
		defer server.Close()
		m.dial = func(context.Context, string, string) (net.Conn, error) {
			return client, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := m.Send(ctx, Message{To: "ana@example.com"})
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("cancellation aborts a session in progress", func(t *testing.T) {
		m := NewSMTPMailer(smtpTestConfig())
		client, server := net.Pipe()
		defer server.Close()
		m.dial = func(context.Context, string, string) (net.Conn, error) {
			return client, nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		err := m.Send(ctx, Message{To: "ana@example.com"})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("dial receives the caller context", func(t *testing.T) {
		m := NewSMTPMailer(smtpTestConfig())
		m.dial = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return nil, ctx.Err()
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, m.Send(ctx, Message{To: "ana@example.com"}), context.Canceled)
	})
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	sink := NewHubSink(hub)
	require.NoError(t, sink.Send(context.Background(), NewEvent(EventChamadoCreated, testChamado(), nil)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var e Event
	require.NoError(t, json.Unmarshal(msg, &e))
	assert.Equal(t, EventChamadoCreated, e.Type)
	assert.Equal(t, int64(7), e.ChamadoID)
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
