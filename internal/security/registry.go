package security

import "fmt"

// Board describes a trading board or venue section.
type Board struct {
	Code string
}

// Registry stores board and instrument mappings for one session.
type Registry struct {
	boards        []Board
	securities    []ID
	boardByCode   map[string]int
	securityByKey map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		boardByCode:   make(map[string]int),
		securityByKey: make(map[string]int),
	}
}

// AddBoard registers a new board code.
func (r *Registry) AddBoard(code string) error {
	if code == "" {
		return fmt.Errorf("board code is empty")
	}
	if _, ok := r.boardByCode[code]; ok {
		return fmt.Errorf("board already exists: %s", code)
	}
	r.boardByCode[code] = len(r.boards)
	r.boards = append(r.boards, Board{Code: code})
	return nil
}

// AddSecurity registers a new instrument on a known board.
func (r *Registry) AddSecurity(symbol, board string) (ID, error) {
	if symbol == "" {
		return ID{}, fmt.Errorf("security symbol is empty")
	}
	if _, ok := r.boardByCode[board]; !ok {
		return ID{}, fmt.Errorf("board not found: %s", board)
	}
	id := ID{Symbol: symbol, Board: board}
	key := id.String()
	if _, ok := r.securityByKey[key]; ok {
		return id, fmt.Errorf("security already exists: %s", key)
	}
	r.securityByKey[key] = len(r.securities)
	r.securities = append(r.securities, id)
	return id, nil
}

// Lookup resolves an instrument by its "SYMBOL@BOARD" key.
func (r *Registry) Lookup(key string) (ID, bool) {
	idx, ok := r.securityByKey[key]
	if !ok {
		return ID{}, false
	}
	return r.securities[idx], true
}

// Securities returns all registered instruments in registration order.
func (r *Registry) Securities() []ID {
	out := make([]ID, len(r.securities))
	copy(out, r.securities)
	return out
}

// Boards returns all registered boards in registration order.
func (r *Registry) Boards() []Board {
	out := make([]Board, len(r.boards))
	copy(out, r.boards)
	return out
}
