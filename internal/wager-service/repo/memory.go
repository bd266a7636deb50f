package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
)

// Memory implementa Store em memória: um escritor por vez, e fn trabalha sobre
// uma cópia do estado que só substitui o estado commitado quando fn retorna nil.
// Usado em ENV=local sem Postgres e nos testes do núcleo.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	groups      map[string]domain.Group
	memberships map[string]domain.Membership // user|group
	ledger      map[string]domain.LedgerEntry // user|group
	txs         []domain.CreditTransaction
	bets        map[string]domain.Bet
	options     map[string]domain.Option
	wagers      map[string]domain.Wager
	parlays     map[string]domain.Parlay
	legs        map[string]domain.ParlayLeg
}

func NewMemory() *Memory {
	return &Memory{state: &memState{
		groups:      map[string]domain.Group{},
		memberships: map[string]domain.Membership{},
		ledger:      map[string]domain.LedgerEntry{},
		bets:        map[string]domain.Bet{},
		options:     map[string]domain.Option{},
		wagers:      map[string]domain.Wager{},
		parlays:     map[string]domain.Parlay{},
		legs:        map[string]domain.ParlayLeg{},
	}}
}

func key(userID, groupID string) string { return userID + "|" + groupID }

// PutGroup e PutMembership alimentam dados que pertencem ao serviço de grupos
func (m *Memory) PutGroup(g domain.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.groups[g.ID] = g
}

func (m *Memory) PutMembership(ms domain.Membership) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.memberships[key(ms.UserID, ms.GroupID)] = ms
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(ctx, &memTx{s: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (s *memState) clone() *memState {
	c := &memState{
		groups:      make(map[string]domain.Group, len(s.groups)),
		memberships: make(map[string]domain.Membership, len(s.memberships)),
		ledger:      make(map[string]domain.LedgerEntry, len(s.ledger)),
		txs:         append([]domain.CreditTransaction(nil), s.txs...),
		bets:        make(map[string]domain.Bet, len(s.bets)),
		options:     make(map[string]domain.Option, len(s.options)),
		wagers:      make(map[string]domain.Wager, len(s.wagers)),
		parlays:     make(map[string]domain.Parlay, len(s.parlays)),
		legs:        make(map[string]domain.ParlayLeg, len(s.legs)),
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = v
	}
	for k, v := range s.bets {
		c.bets[k] = v
	}
	for k, v := range s.options {
		c.options[k] = v
	}
	for k, v := range s.wagers {
		c.wagers[k] = v
	}
	for k, v := range s.parlays {
		c.parlays[k] = v
	}
	for k, v := range s.legs {
		c.legs[k] = v
	}
	return c
}

type memTx struct{ s *memState }

func (t *memTx) GetGroup(_ context.Context, groupID string) (domain.Group, error) {
	g, ok := t.s.groups[groupID]
	if !ok {
		return domain.Group{}, domain.NotFound("group %s not found", groupID)
	}
	return g, nil
}

func (t *memTx) GetMembership(_ context.Context, userID, groupID string) (domain.Membership, error) {
	ms, ok := t.s.memberships[key(userID, groupID)]
	if !ok {
		return domain.Membership{}, domain.NotFound("membership not found")
	}
	return ms, nil
}

func (t *memTx) GetLedgerEntryForUpdate(_ context.Context, userID, groupID string) (domain.LedgerEntry, error) {
	e, ok := t.s.ledger[key(userID, groupID)]
	if !ok {
		return domain.LedgerEntry{}, domain.NotFound("ledger entry not found")
	}
	return e, nil
}

func (t *memTx) InsertLedgerEntry(_ context.Context, e domain.LedgerEntry) error {
	k := key(e.UserID, e.GroupID)
	if _, ok := t.s.ledger[k]; ok {
		return domain.Conflict("ledger entry already exists")
	}
	t.s.ledger[k] = e
	return nil
}

func (t *memTx) UpdateLedgerEntry(_ context.Context, e domain.LedgerEntry) error {
	k := key(e.UserID, e.GroupID)
	if _, ok := t.s.ledger[k]; !ok {
		return domain.NotFound("ledger entry not found")
	}
	t.s.ledger[k] = e
	return nil
}

func (t *memTx) InsertCreditTransaction(_ context.Context, ct domain.CreditTransaction) error {
	t.s.txs = append(t.s.txs, ct)
	return nil
}

func (t *memTx) ListCreditTransactions(_ context.Context, userID, groupID string) ([]domain.CreditTransaction, error) {
	var out []domain.CreditTransaction
	for _, ct := range t.s.txs {
		if ct.UserID == userID && ct.GroupID == groupID {
			out = append(out, ct)
		}
	}
	return out, nil
}

func (t *memTx) InsertBet(_ context.Context, b domain.Bet, opts []domain.Option) error {
	if _, ok := t.s.bets[b.ID]; ok {
		return domain.Conflict("bet %s already exists", b.ID)
	}
	t.s.bets[b.ID] = b
	for _, o := range opts {
		t.s.options[o.ID] = o
	}
	return nil
}

func (t *memTx) GetBet(_ context.Context, betID string) (domain.Bet, error) {
	b, ok := t.s.bets[betID]
	if !ok {
		return domain.Bet{}, domain.NotFound("bet %s not found", betID)
	}
	return b, nil
}

func (t *memTx) GetBetForUpdate(ctx context.Context, betID string) (domain.Bet, error) {
	return t.GetBet(ctx, betID)
}

func (t *memTx) UpdateBet(_ context.Context, b domain.Bet) error {
	if _, ok := t.s.bets[b.ID]; !ok {
		return domain.NotFound("bet %s not found", b.ID)
	}
	t.s.bets[b.ID] = b
	return nil
}

func (t *memTx) DeleteBet(_ context.Context, betID string) error {
	if _, ok := t.s.bets[betID]; !ok {
		return domain.NotFound("bet %s not found", betID)
	}
	delete(t.s.bets, betID)
	for id, o := range t.s.options {
		if o.BetID == betID {
			delete(t.s.options, id)
		}
	}
	return nil
}

func (t *memTx) ListOptions(_ context.Context, betID string) ([]domain.Option, error) {
	var out []domain.Option
	for _, o := range t.s.options {
		if o.BetID == betID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (t *memTx) GetOption(_ context.Context, optionID string) (domain.Option, error) {
	o, ok := t.s.options[optionID]
	if !ok {
		return domain.Option{}, domain.NotFound("option %s not found", optionID)
	}
	return o, nil
}

func (t *memTx) InsertWager(_ context.Context, w domain.Wager) error {
	for _, other := range t.s.wagers {
		if other.UserID == w.UserID && other.BetID == w.BetID {
			return domain.Conflict("user already has a wager on bet %s", w.BetID)
		}
	}
	t.s.wagers[w.ID] = w
	return nil
}

func (t *memTx) GetWager(_ context.Context, wagerID string) (domain.Wager, error) {
	w, ok := t.s.wagers[wagerID]
	if !ok {
		return domain.Wager{}, domain.NotFound("wager %s not found", wagerID)
	}
	return w, nil
}

func (t *memTx) FindWager(_ context.Context, userID, betID string) (domain.Wager, bool, error) {
	for _, w := range t.s.wagers {
		if w.UserID == userID && w.BetID == betID {
			return w, true, nil
		}
	}
	return domain.Wager{}, false, nil
}

func (t *memTx) ListWagersByBet(_ context.Context, betID string) ([]domain.Wager, error) {
	var out []domain.Wager
	for _, w := range t.s.wagers {
		if w.BetID == betID {
			out = append(out, w)
		}
	}
	sortWagers(out)
	return out, nil
}

func (t *memTx) ListWagersByUser(_ context.Context, userID, groupID string) ([]domain.Wager, error) {
	var out []domain.Wager
	for _, w := range t.s.wagers {
		if w.UserID == userID && w.GroupID == groupID {
			out = append(out, w)
		}
	}
	sortWagers(out)
	return out, nil
}

func sortWagers(ws []domain.Wager) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].CreatedAt.Equal(ws[j].CreatedAt) {
			return ws[i].ID < ws[j].ID
		}
		return ws[i].CreatedAt.Before(ws[j].CreatedAt)
	})
}

func (t *memTx) CountWagersByBet(ctx context.Context, betID string) (int, error) {
	ws, _ := t.ListWagersByBet(ctx, betID)
	return len(ws), nil
}

func (t *memTx) UpdateWagerResult(_ context.Context, wagerID string, result domain.Result, settledAt time.Time) error {
	w, ok := t.s.wagers[wagerID]
	if !ok {
		return domain.NotFound("wager %s not found", wagerID)
	}
	w.Result = result
	w.SettledAt = &settledAt
	t.s.wagers[wagerID] = w
	return nil
}

func (t *memTx) DeleteWager(_ context.Context, wagerID string) error {
	if _, ok := t.s.wagers[wagerID]; !ok {
		return domain.NotFound("wager %s not found", wagerID)
	}
	delete(t.s.wagers, wagerID)
	return nil
}

func (t *memTx) InsertParlay(_ context.Context, p domain.Parlay, legs []domain.ParlayLeg) error {
	if _, ok := t.s.parlays[p.ID]; ok {
		return domain.Conflict("parlay %s already exists", p.ID)
	}
	t.s.parlays[p.ID] = p
	for _, l := range legs {
		t.s.legs[l.ID] = l
	}
	return nil
}

func (t *memTx) GetParlay(_ context.Context, parlayID string) (domain.Parlay, error) {
	p, ok := t.s.parlays[parlayID]
	if !ok {
		return domain.Parlay{}, domain.NotFound("parlay %s not found", parlayID)
	}
	return p, nil
}

func (t *memTx) GetParlayForUpdate(ctx context.Context, parlayID string) (domain.Parlay, error) {
	return t.GetParlay(ctx, parlayID)
}

func (t *memTx) ListParlaysByUser(_ context.Context, userID, groupID string) ([]domain.Parlay, error) {
	var out []domain.Parlay
	for _, p := range t.s.parlays {
		if p.UserID == userID && p.GroupID == groupID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memTx) UpdateParlayResult(_ context.Context, parlayID string, result domain.Result, settledAt time.Time) error {
	p, ok := t.s.parlays[parlayID]
	if !ok {
		return domain.NotFound("parlay %s not found", parlayID)
	}
	p.Result = result
	p.SettledAt = &settledAt
	t.s.parlays[parlayID] = p
	return nil
}

func (t *memTx) DeleteParlay(_ context.Context, parlayID string) error {
	if _, ok := t.s.parlays[parlayID]; !ok {
		return domain.NotFound("parlay %s not found", parlayID)
	}
	delete(t.s.parlays, parlayID)
	for id, l := range t.s.legs {
		if l.ParlayID == parlayID {
			delete(t.s.legs, id)
		}
	}
	return nil
}

func (t *memTx) ListLegs(_ context.Context, parlayID string) ([]domain.LegWithBet, error) {
	var out []domain.LegWithBet
	for _, l := range t.s.legs {
		if l.ParlayID != parlayID {
			continue
		}
		b, ok := t.s.bets[l.BetID]
		if !ok {
			return nil, domain.NotFound("bet %s not found", l.BetID)
		}
		out = append(out, domain.LegWithBet{ParlayLeg: l, BetStatus: b.Status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (t *memTx) ListPendingParlayIDsByBet(_ context.Context, betID string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range t.s.legs {
		if l.BetID != betID {
			continue
		}
		p, ok := t.s.parlays[l.ParlayID]
		if !ok || p.Result != domain.ResultPending {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p.ID)
	}
	sort.Strings(out)
	return out, nil
}

func (t *memTx) CountLegsByBet(_ context.Context, betID string) (int, error) {
	n := 0
	for _, l := range t.s.legs {
		if l.BetID == betID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) UpdateLegResult(_ context.Context, legID string, result domain.Result) error {
	l, ok := t.s.legs[legID]
	if !ok {
		return domain.NotFound("parlay leg %s not found", legID)
	}
	l.Result = result
	t.s.legs[legID] = l
	return nil
}
