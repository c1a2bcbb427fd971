package domain

// Setor is an organizational unit chamados are routed to.
type Setor struct {
	ID        int64
	Nome      string
	Problemas []Problema
}

// HasProblema reports whether the problema belongs to the setor's catalog.
func (s *Setor) HasProblema(problemaID int64) bool {
	for _, p := range s.Problemas {
		if p.ID == problemaID {
			return true
		}
	}
	return false
}

// Problema is a predefined issue type scoped to a Setor.
type Problema struct {
	ID        int64
	Descricao string
	SetorID   int64
}
