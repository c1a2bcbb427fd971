package domain

// Situacao is the lifecycle state of a chamado.
type Situacao string

const (
	SituacaoAberto        Situacao = "ABERTO"
	SituacaoEmAtendimento Situacao = "EM_ATENDIMENTO"
	SituacaoPendente      Situacao = "PENDENTE"
	SituacaoTransferido   Situacao = "TRANSFERIDO"
	SituacaoConcluido     Situacao = "CONCLUIDO"
	SituacaoCancelado     Situacao = "CANCELADO"
)

var situacaoColors = map[Situacao]string{
	SituacaoAberto:        "white",
	SituacaoCancelado:     "red",
	SituacaoConcluido:     "green",
	SituacaoEmAtendimento: "blue",
	SituacaoPendente:      "yellow",
	SituacaoTransferido:   "orange",
}

// IsTerminal returns true for situations that close the chamado.
func (s Situacao) IsTerminal() bool {
	return s == SituacaoConcluido || s == SituacaoCancelado
}

// IsValid checks if the situacao is one of the allowed values.
func (s Situacao) IsValid() bool {
	_, ok := situacaoColors[s]
	return ok
}

// Color is the display color clients use for the situacao.
func (s Situacao) Color() string {
	return situacaoColors[s]
}

// Prioridade is informational and never gates a transition.
type Prioridade string

const (
	PrioridadeBaixa Prioridade = "BAIXA"
	PrioridadeMedia Prioridade = "MEDIA"
	PrioridadeAlta  Prioridade = "ALTA"
)

// IsValid checks if the prioridade is one of the allowed values.
func (p Prioridade) IsValid() bool {
	switch p {
	case PrioridadeBaixa, PrioridadeMedia, PrioridadeAlta:
		return true
	default:
		return false
	}
}
