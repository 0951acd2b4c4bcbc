package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keiba-predict/engine/betting"
	"github.com/keiba-predict/engine/prediction"
	"github.com/keiba-predict/engine/store"
)

func (s *Server) handleRacesToday(w http.ResponseWriter, r *http.Request) {
	races, err := s.store.ListRacesByDate(r.Context(), time.Now().UTC())
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, races)
}

func (s *Server) handleRacesUpcoming(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	races, err := s.store.ListUpcomingRaces(r.Context(), time.Now().UTC(), days)
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, races)
}

func (s *Server) handleRacesByDate(w http.ResponseWriter, r *http.Request) {
	d, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "bad date, expected YYYY-MM-DD", err.Error())
		return
	}
	races, err := s.store.ListRacesByDate(r.Context(), d)
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, races)
}

func (s *Server) handleRaceByID(w http.ResponseWriter, r *http.Request) {
	race, err := s.store.GetRace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, race)
}

func (s *Server) handleRacesSearchName(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "missing q parameter", "")
		return
	}
	races, err := s.store.SearchRacesByName(r.Context(), store.ExpandRaceNameQuery(q))
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, races)
}

type createPredictionRequest struct {
	RaceID   string  `json:"race_id"`
	IsFinal  bool    `json:"is_final"`
	BiasDate *string `json:"bias_date,omitempty"`
}

// handleCreatePrediction backs POST /predictions/. race_id may be a
// canonical id or any race-spec string prediction.ResolveRaceSpec accepts.
func (s *Server) handleCreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req createPredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "malformed request body", err.Error())
		return
	}
	if req.RaceID == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "race_id is required", "")
		return
	}

	raceID, err := prediction.ResolveRaceSpec(r.Context(), s.store, req.RaceID, time.Now().UTC())
	if err != nil {
		translateError(w, err)
		return
	}

	var biasDate *time.Time
	if req.BiasDate != nil && *req.BiasDate != "" {
		t, err := time.Parse("2006-01-02", *req.BiasDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, "bad bias_date, expected YYYY-MM-DD", err.Error())
			return
		}
		biasDate = &t
	}

	resp, err := s.facade.GeneratePrediction(r.Context(), raceID, req.IsFinal, biasDate)
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPredictionByID(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetPredictionByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListPredictionsByRace(w http.ResponseWriter, r *http.Request) {
	raceID := r.URL.Query().Get("race_id")
	if raceID == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "race_id query parameter is required", "")
		return
	}
	isFinal := r.URL.Query().Get("is_final") == "true"
	rec, err := s.store.GetPredictionByRace(r.Context(), raceID, isFinal)
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetHorse(w http.ResponseWriter, r *http.Request) {
	h, err := s.store.GetHorse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleHorseSearch(w http.ResponseWriter, r *http.Request) {
	horses, err := s.store.SearchHorses(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, horses)
}

func (s *Server) handleJockeySearch(w http.ResponseWriter, r *http.Request) {
	jockeys, err := s.store.SearchJockeys(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jockeys)
}

// handleOdds backs GET /odds/{race_id}?ticket_type=.... The store contract
// only exposes declared win odds (odds_1), so only "単勝" (or an empty
// ticket_type) returns data; any other ticket type is rejected as
// INVALID_REQUEST.
func (s *Server) handleOdds(w http.ResponseWriter, r *http.Request) {
	if tt := r.URL.Query().Get("ticket_type"); tt != "" && tt != string(betting.TicketWin) {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "unsupported ticket_type", tt)
		return
	}
	odds, err := s.store.GetDeclaredOdds(r.Context(), chi.URLParam(r, "raceID"))
	if err != nil {
		translateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, odds)
}

type optimizeTicketsRequest struct {
	RaceID     string `json:"race_id"`
	IsFinal    bool   `json:"is_final"`
	TicketType string `json:"ticket_type"`
	BudgetYen  int    `json:"budget_yen"`
}

func (s *Server) handleBettingOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "malformed request body", err.Error())
		return
	}

	rec, err := s.store.GetPredictionByRace(r.Context(), req.RaceID, req.IsFinal)
	if err != nil {
		translateError(w, err)
		return
	}
	odds, err := s.store.GetDeclaredOdds(r.Context(), req.RaceID)
	if err != nil {
		odds = nil // odds are a refinement only; the optimizer falls back to rank-based defaults
	}

	alloc, err := betting.OptimizeTickets(betting.TicketType(req.TicketType), req.BudgetYen, rec.Result, odds)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid betting request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alloc)
}
