// Package httpserver exposes the fibox HTTP JSON API.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth     service.AuthService
	registry service.RegistryService
	agg      service.Aggregator
	log      *zap.Logger
	ping     func(context.Context) error
}

// New constructs a Server with injected services.
func New(auth service.AuthService, registry service.RegistryService, agg service.Aggregator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, registry: registry, agg: agg, log: log}
}

// WithPing makes /health report the result of ping, typically the database pool's Ping.
func (s *Server) WithPing(ping func(context.Context) error) *Server {
	s.ping = ping
	return s
}

// Handler returns the routed API with recovery, logging and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /signup", s.signup)
	mux.HandleFunc("GET /login", s.login)
	mux.HandleFunc("GET /newLinkToken", s.requireSession(s.newLinkToken))
	mux.HandleFunc("GET /submitPublicToken", s.requireSession(s.submitPublicToken))
	mux.HandleFunc("GET /getAllAccountData", s.requireSession(s.allAccountData))
	mux.HandleFunc("GET /getTransactions", s.requireSession(s.transactions))

	var h http.Handler = mux
	h = CORS(h)
	h = Logging(s.log)(h)
	h = Recover(s.log)(h)
	return h
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeFailed(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}
	writeOK(w, "", nil)
}

// --- Auth ---

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	username, password := q.Get("username"), q.Get("password")
	if username == "" || password == "" {
		writeFailed(w, http.StatusBadRequest, "Incomplete signup")
		return
	}
	id, err := s.auth.Register(r.Context(), username, password)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, "", map[string]string{"user_id": id})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	username, password := q.Get("username"), q.Get("password")
	if username == "" || password == "" {
		writeFailed(w, http.StatusBadRequest, "Incomplete login")
		return
	}
	tok, err := s.auth.Login(r.Context(), username, password)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, "", map[string]string{"token": tok})
}

// --- Items ---

func (s *Server) newLinkToken(w http.ResponseWriter, r *http.Request) {
	username, _ := UsernameFromCtx(r.Context())
	lt, err := s.registry.CreateLinkToken(r.Context(), username)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, "", lt)
}

func (s *Server) submitPublicToken(w http.ResponseWriter, r *http.Request) {
	username, _ := UsernameFromCtx(r.Context())
	publicToken := r.URL.Query().Get("public_token")
	if publicToken == "" {
		writeFailed(w, http.StatusBadRequest, "public_token missing")
		return
	}
	it, err := s.registry.LinkItem(r.Context(), username, publicToken)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, "", map[string]string{"item_id": it.ItemID})
}

// --- Aggregation ---

func (s *Server) allAccountData(w http.ResponseWriter, r *http.Request) {
	username, _ := UsernameFromCtx(r.Context())
	rep, err := s.agg.AggregateBalances(r.Context(), username)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var msg string
	if n := len(rep.Failures); n > 0 {
		msg = fmt.Sprintf("%d item(s) unavailable", n)
	}
	writeOK(w, msg, rep.Accounts)
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	username, _ := UsernameFromCtx(r.Context())
	q := r.URL.Query()
	itemID, accountID := q.Get("item_id"), q.Get("account_id")
	if itemID == "" || accountID == "" {
		writeFailed(w, http.StatusBadRequest, "Request parameters missing")
		return
	}
	rng, err := parseRange(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	txs, err := s.agg.FetchTransactions(r.Context(), username, itemID, accountID, rng)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeOK(w, "", txs)
}

// parseRange parses optional YYYY-MM-DD bounds; absent bounds stay zero for the aggregator to default.
func parseRange(start, end string) (model.DateRange, error) {
	var r model.DateRange
	var err error
	if start != "" {
		if r.Start, err = time.Parse(model.DateLayout, start); err != nil {
			return r, fmt.Errorf("%w: start_date: %w", errs.ErrValidation, err)
		}
	}
	if end != "" {
		if r.End, err = time.Parse(model.DateLayout, end); err != nil {
			return r, fmt.Errorf("%w: end_date: %w", errs.ErrValidation, err)
		}
	}
	return r, nil
}
