package document

// Config carries thresholds and keyword lists. Keywords are matched as whole words after
// lower-casing and accent folding, so "identidade" and "IDENTIDADE" match the same entry.
type Config struct {
	ConfidenceThreshold float64
	// MinTextLength: trimmed text must be strictly longer than this many runes.
	MinTextLength     int
	PrimaryKeywords   []string
	SecondaryKeywords []string
	GenericKeywords   []string
}

// DefaultConfig returns the Brazilian RG/CPF defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.3,
		MinTextLength:       20,
		PrimaryKeywords: []string{
			"registro geral",
			"carteira de identidade",
			"identidade",
			"instituto de identificacao",
			"secretaria de seguranca publica",
			"rg",
		},
		SecondaryKeywords: []string{
			"cpf",
			"cadastro de pessoas fisicas",
			"cadastro de pessoa fisica",
			"receita federal",
			"ministerio da fazenda",
		},
		GenericKeywords: []string{
			"republica federativa do brasil",
			"brasil",
			"ministerio",
			"governo",
			"secretaria",
			"estado",
			"identidade",
			"identificacao",
			"registro",
			"nascimento",
			"data de nascimento",
			"filiacao",
			"naturalidade",
			"documento",
			"validade",
			"assinatura",
			"nome",
		},
	}
}

// WithOverrides replaces keyword lists that are non-empty.
func (c Config) WithOverrides(primary, secondary, generic []string) Config {
	if len(primary) > 0 {
		c.PrimaryKeywords = primary
	}
	if len(secondary) > 0 {
		c.SecondaryKeywords = secondary
	}
	if len(generic) > 0 {
		c.GenericKeywords = generic
	}
	return c
}
