package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"crypto/tls"
	"html/template"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mtlprog/helpdesk/internal/config"
	"github.com/mtlprog/helpdesk/internal/domain"
)

// TypeChamadoEmail is the asynq task type for solicitante emails.
const TypeChamadoEmail = "chamado:email"

// EmailPayload is the body of a TypeChamadoEmail task.
type EmailPayload struct {
	To        string          `json:"to"`
	Nome      string          `json:"nome"`
	EventType EventType       `json:"eventType"`
	ChamadoID int64           `json:"chamadoId"`
	Descricao string          `json:"descricao"`
	Situacao  domain.Situacao `json:"situacao"`
	Color     string          `json:"color"`
	Nota      string          `json:"nota,omitempty"`
}

// enqueuer is the part of *asynq.Client the sink uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EmailSink queues an email to the solicitante for every event that has one.
// Delivery happens in the worker process.
type EmailSink struct {
	client enqueuer
	queue  string
}

// NewEmailSink creates an EmailSink that enqueues on the given queue.
func NewEmailSink(client enqueuer, queue string) *EmailSink {
	return &EmailSink{client: client, queue: queue}
}

// Name implements Sink.
func (s *EmailSink) Name() string { return "email" }

// Send implements Sink.
func (s *EmailSink) Send(ctx context.Context, event Event) error {
	if event.Recipient == nil || event.Recipient.Email == "" {
		return nil
	}

	p := EmailPayload{
		To:        event.Recipient.Email,
		Nome:      event.Recipient.Nome,
		EventType: event.Type,
		ChamadoID: event.ChamadoID,
		Descricao: event.Chamado.Descricao,
		Situacao:  event.Chamado.Situacao,
		Color:     event.Chamado.Color,
	}
	if last := event.Chamado.LastAlteracao; last != nil && last.Descricao != nil {
		p.Nota = *last.Descricao
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	task := asynq.NewTask(TypeChamadoEmail, payload,
		asynq.Queue(s.queue),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.TaskID(event.ID.String()),
	)
	if _, err := s.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue email task: %w", err)
	}
	return nil
}

// Message is an outgoing HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// EmailTaskHandler renders and sends TypeChamadoEmail tasks.
type EmailTaskHandler struct {
	mailer Mailer
	tmpl   *template.Template
}

// NewEmailTaskHandler creates an EmailTaskHandler.
func NewEmailTaskHandler(mailer Mailer) *EmailTaskHandler {
	return &EmailTaskHandler{
		mailer: mailer,
		tmpl:   template.Must(template.New("chamado").Parse(chamadoEmailTemplate)),
	}
}

// ProcessTask implements asynq.Handler. Malformed payloads are not retried.
func (h *EmailTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p EmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode email payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.To == "" {
		return fmt.Errorf("email payload without recipient: %w", asynq.SkipRetry)
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, p); err != nil {
		return fmt.Errorf("render email: %v: %w", err, asynq.SkipRetry)
	}

	msg := Message{
		To:      p.To,
		Subject: emailSubject(p),
		HTML:    buf.String(),
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email for chamado %d: %w", p.ChamadoID, err)
	}

	slog.Info("chamado email sent", "chamado_id", p.ChamadoID, "event_type", p.EventType)
	return nil
}

func emailSubject(p EmailPayload) string {
	if p.EventType == EventChamadoCreated {
		return fmt.Sprintf("Chamado #%d aberto", p.ChamadoID)
	}
	return fmt.Sprintf("Chamado #%d: %s", p.ChamadoID, p.Situacao)
}

const chamadoEmailTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <p>Olá {{if .Nome}}{{.Nome}}{{else}}solicitante{{end}},</p>
  <p>O chamado <strong>#{{.ChamadoID}}</strong> está na situação
    <span style="color: {{.Color}}; font-weight: bold;">{{.Situacao}}</span>.</p>
  <div style="background: #f3f4f6; padding: 15px; border-radius: 8px; margin: 20px 0;">
    <p style="margin: 5px 0;">{{.Descricao}}</p>
    {{if .Nota}}<p style="margin: 5px 0;"><em>{{.Nota}}</em></p>{{end}}
  </div>
  <p style="color: #6b7280; font-size: 12px;">Mensagem automática do helpdesk.</p>
</body>
</html>`

// SMTPMailer sends mail through an SMTP relay. Without credentials it only logs.
type SMTPMailer struct {
	cfg  config.SMTPConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, dial: (&net.Dialer{}).DialContext}
}

// Send implements Mailer. The SMTP session is aborted when ctx is done.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.cfg.User == "" || m.cfg.Password == "" {
		slog.Info("smtp not configured, email not sent", "to", msg.To, "subject", msg.Subject)
		return nil
	}

	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	conn, err := m.dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := m.deliver(conn, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return err
	}
	return nil
}

func (m *SMTPMailer) deliver(conn net.Conn, msg Message) error {
	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	body := fmt.Sprintf("From: %s <%s>\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n%s",
		m.cfg.FromName, m.cfg.From, msg.To, msg.Subject, msg.HTML)
	if _, err := w.Write([]byte(body)); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp end data: %w", err)
	}

	return c.Quit()
}
