package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/social-wager-platform/internal/wager-service/bets"
	"github.com/radieske/social-wager-platform/internal/wager-service/dto"
	"github.com/radieske/social-wager-platform/internal/wager-service/parlays"
)

// bets

func (s *Server) createBet(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBetRequest
	if !s.decode(w, r, &req) {
		return
	}
	in := bets.CreateInput{Title: req.Title, Description: req.Description, LocksAt: req.LocksAt}
	for _, o := range req.Options {
		in.Options = append(in.Options, bets.OptionInput{Label: o.Label, AmericanOdds: o.AmericanOdds})
	}
	v, err := s.bets.Create(r.Context(), userID(r), chi.URLParam(r, "groupID"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromBetView(v))
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	v, err := s.bets.Get(r.Context(), userID(r), chi.URLParam(r, "betID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBetView(v))
}

func (s *Server) deleteBet(w http.ResponseWriter, r *http.Request) {
	if err := s.bets.Delete(r.Context(), userID(r), chi.URLParam(r, "betID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lockBet(w http.ResponseWriter, r *http.Request) {
	b, err := s.bets.Lock(r.Context(), userID(r), chi.URLParam(r, "betID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBet(b))
}

func (s *Server) settleBet(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleBetRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.bets.Settle(r.Context(), userID(r), chi.URLParam(r, "betID"), req.WinningOptionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSettle(res))
}

func (s *Server) cancelBet(w http.ResponseWriter, r *http.Request) {
	res, err := s.bets.Cancel(r.Context(), userID(r), chi.URLParam(r, "betID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromCancel(res))
}

// wagers

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceWagerRequest
	if !s.decode(w, r, &req) {
		return
	}
	wg, err := s.wagers.Place(r.Context(), userID(r), req.OptionID, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromWager(wg))
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	wg, err := s.wagers.Get(r.Context(), userID(r), chi.URLParam(r, "wagerID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromWager(wg))
}

func (s *Server) cancelWager(w http.ResponseWriter, r *http.Request) {
	if err := s.wagers.Cancel(r.Context(), userID(r), chi.URLParam(r, "wagerID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listWagers(w http.ResponseWriter, r *http.Request) {
	ws, err := s.wagers.ListMine(r.Context(), userID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromWagers(ws))
}

// parlays

func (s *Server) placeParlay(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceParlayRequest
	if !s.decode(w, r, &req) {
		return
	}
	legs := make([]parlays.LegInput, 0, len(req.Legs))
	for _, l := range req.Legs {
		legs = append(legs, parlays.LegInput{BetID: l.BetID, OptionID: l.OptionID})
	}
	v, err := s.parlays.Place(r.Context(), userID(r), req.GroupID, req.Amount, legs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromParlay(v))
}

func (s *Server) getParlay(w http.ResponseWriter, r *http.Request) {
	v, err := s.parlays.Get(r.Context(), userID(r), chi.URLParam(r, "parlayID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromParlay(v))
}

func (s *Server) cancelParlay(w http.ResponseWriter, r *http.Request) {
	if err := s.parlays.Cancel(r.Context(), userID(r), chi.URLParam(r, "parlayID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listParlays(w http.ResponseWriter, r *http.Request) {
	vs, err := s.parlays.ListMine(r.Context(), userID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromParlays(vs))
}

// credits

func (s *Server) seedCredits(w http.ResponseWriter, r *http.Request) {
	ct, err := s.credits.Seed(r.Context(), userID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromTransaction(ct))
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	uid, gid := userID(r), chi.URLParam(r, "groupID")
	b, err := s.credits.Balance(r.Context(), uid, gid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBalance(uid, gid, b))
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	txs, err := s.credits.History(r.Context(), userID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTransactions(txs))
}

func (s *Server) adjustCredits(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustCreditsRequest
	if !s.decode(w, r, &req) {
		return
	}
	ct, err := s.credits.Adjust(r.Context(), userID(r), req.UserID, chi.URLParam(r, "groupID"), req.Amount, req.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTransaction(ct))
}

// reconcile usa ?userId= para um admin conferir outro membro; sem o parâmetro confere o próprio
func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	actor, gid := userID(r), chi.URLParam(r, "groupID")
	target := r.URL.Query().Get("userId")
	if target == "" {
		target = actor
	}
	rep, err := s.credits.Reconcile(r.Context(), actor, target, gid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ReconcileResponse{
		UserID:       target,
		GroupID:      gid,
		Transactions: rep.Transactions,
		Available:    rep.Balance.Available.StringFixed(2),
		Allocated:    rep.Balance.Allocated.StringFixed(2),
	})
}
