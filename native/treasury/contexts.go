package treasury

import "strings"

type storedContext struct {
	Token    string
	Decimals uint8
	Currency uint32
	Standard uint8
}

// SetAccountingContext registers how a token is accounted for on a terminal.
// Contexts are write-once per (terminal, project, token); a second call for
// the same key fails with ErrContextAlreadySet.
func (s *TerminalStore) SetAccountingContext(terminal string, project uint64, ctx AccountingContext) error {
	if s == nil || s.state == nil {
		return errNilState
	}
	terminal = strings.TrimSpace(terminal)
	token := strings.TrimSpace(ctx.Token)
	if terminal == "" || token == "" {
		return errInvalidKey
	}
	key := contextKey(terminal, project, token)
	var existing storedContext
	ok, err := s.state.KVGet(key, &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrContextAlreadySet
	}
	stored := storedContext{
		Token:    token,
		Decimals: ctx.Decimals,
		Currency: ctx.Currency,
		Standard: uint8(ctx.Standard),
	}
	if err := s.state.KVPut(key, stored); err != nil {
		return err
	}
	return s.indexTerminal(terminal, project, token)
}

// ContextFor resolves the accounting context registered for a token, or
// ErrContextNotSet when none exists. The store checks this before accepting
// any value for the token.
func (s *TerminalStore) ContextFor(terminal string, project uint64, token string) (AccountingContext, error) {
	if s == nil || s.state == nil {
		return AccountingContext{}, errNilState
	}
	var stored storedContext
	ok, err := s.state.KVGet(contextKey(strings.TrimSpace(terminal), project, strings.TrimSpace(token)), &stored)
	if err != nil {
		return AccountingContext{}, err
	}
	if !ok {
		return AccountingContext{}, ErrContextNotSet
	}
	return AccountingContext{
		Token:    stored.Token,
		Decimals: stored.Decimals,
		Currency: stored.Currency,
		Standard: TokenStandard(stored.Standard),
	}, nil
}

type storedTerminalIndex struct {
	Terminals []string
}

func (s *TerminalStore) indexTerminal(terminal string, project uint64, token string) error {
	key := terminalIndexKey(project, token)
	var index storedTerminalIndex
	if _, err := s.state.KVGet(key, &index); err != nil {
		return err
	}
	for _, existing := range index.Terminals {
		if existing == terminal {
			return nil
		}
	}
	index.Terminals = append(index.Terminals, terminal)
	return s.state.KVPut(key, index)
}

// terminalsAccountingFor lists every terminal with a registered context for
// the token, in registration order. Used when aggregating total surplus.
func (s *TerminalStore) terminalsAccountingFor(project uint64, token string) ([]string, error) {
	var index storedTerminalIndex
	if _, err := s.state.KVGet(terminalIndexKey(project, token), &index); err != nil {
		return nil, err
	}
	return index.Terminals, nil
}
