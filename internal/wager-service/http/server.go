package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/shared/metrics"
	"github.com/radieske/social-wager-platform/internal/wager-service/bets"
	"github.com/radieske/social-wager-platform/internal/wager-service/credits"
	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/internal/wager-service/dto"
	"github.com/radieske/social-wager-platform/internal/wager-service/parlays"
	"github.com/radieske/social-wager-platform/internal/wager-service/wagers"
)

// UserHeader carrega o usuário já autenticado pelo gateway
const UserHeader = "X-User-ID"

type ctxKey struct{}

type Server struct {
	log      *zap.Logger
	bets     *bets.Service
	wagers   *wagers.Service
	parlays  *parlays.Service
	credits  *credits.Service
	metrics  *metrics.Wager
	validate *validator.Validate
	origins  []string
}

func NewServer(log *zap.Logger, b *bets.Service, w *wagers.Service, p *parlays.Service, c *credits.Service, m *metrics.Wager, corsOrigins []string) *Server {
	return &Server{
		log:      log,
		bets:     b,
		wagers:   w,
		parlays:  p,
		credits:  c,
		metrics:  m,
		validate: validator.New(),
		origins:  corsOrigins,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(15 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", UserHeader},
		MaxAge:         300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/groups/{groupID}", func(r chi.Router) {
			r.Post("/bets", s.createBet)
			r.Get("/wagers", s.listWagers)
			r.Get("/parlays", s.listParlays)
			r.Post("/credits/seed", s.seedCredits)
			r.Get("/credits", s.getBalance)
			r.Get("/credits/history", s.getHistory)
			r.Post("/credits/adjust", s.adjustCredits)
			r.Get("/credits/reconcile", s.reconcile)
		})

		r.Route("/bets/{betID}", func(r chi.Router) {
			r.Get("/", s.getBet)
			r.Delete("/", s.deleteBet)
			r.Post("/lock", s.lockBet)
			r.Post("/settle", s.settleBet)
			r.Post("/cancel", s.cancelBet)
		})

		r.Post("/wagers", s.placeWager)
		r.Get("/wagers/{wagerID}", s.getWager)
		r.Delete("/wagers/{wagerID}", s.cancelWager)

		r.Post("/parlays", s.placeParlay)
		r.Get("/parlays/{parlayID}", s.getParlay)
		r.Delete("/parlays/{parlayID}", s.cancelParlay)
	})
	return r
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get(UserHeader)
		if uid == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthenticated", Message: UserHeader + " header is required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, uid)))
	})
}

func userID(r *http.Request) string {
	uid, _ := r.Context().Value(ctxKey{}).(string)
	return uid
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

// decode lê o JSON e roda as tags validate; responde 400 e devolve false em caso de erro
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: string(domain.KindValidation), Message: "invalid JSON body"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		resp := dto.ErrorResponse{Error: string(domain.KindValidation), Message: "invalid request"}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			resp.Details = make(map[string]string, len(verrs))
			for _, fe := range verrs {
				resp.Details[fe.Namespace()] = "failed on '" + fe.Tag() + "'"
			}
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return false
	}
	return true
}

func statusFor(k domain.Kind) int {
	switch k {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindInvalidState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindInsufficientCredits:
		return http.StatusUnprocessableEntity
	case domain.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	if kind == "" {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal", Message: "internal error"})
		return
	}
	s.metrics.DomainErrors.WithLabelValues(string(kind)).Inc()
	s.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.String("kind", string(kind)), zap.Error(err))

	var de *domain.Error
	msg := err.Error()
	if errors.As(err, &de) {
		msg = de.Msg
	}
	writeJSON(w, statusFor(kind), dto.ErrorResponse{Error: string(kind), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
