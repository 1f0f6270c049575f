package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bloomsocial/gateway/middleware"
)

// Server exposes the projection over a JSON HTTP API.
type Server struct {
	queries *Queries
	log     *slog.Logger
	obs     *middleware.Observability

	mu         sync.Mutex
	httpServer *http.Server
}

func NewServer(queries *Queries, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		queries: queries,
		log:     log,
		obs:     middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: "bloom-indexer"}, log),
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: []string{"*"}}))
	r.With(s.obs.Middleware("contents")).Get("/contents", s.handleListContents)
	r.With(s.obs.Middleware("content")).Get("/contents/{id}", s.handleGetContent)
	r.Route("/users/{address}", func(r chi.Router) {
		r.With(s.obs.Middleware("user")).Get("/", s.handleGetUser)
		r.With(s.obs.Middleware("user_contents")).Get("/contents", s.handleUserContents)
		r.With(s.obs.Middleware("user_likes")).Get("/likes", s.handleUserLikes)
		r.With(s.obs.Middleware("user_following")).Get("/following", s.handleFollowing)
		r.With(s.obs.Middleware("user_followers")).Get("/followers", s.handleFollowers)
	})
	r.With(s.obs.Middleware("exports")).Get("/exports/payouts", s.handleExport)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()
	s.log.Info("indexer api listening", slog.String("address", listener.Addr().String()))
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleListContents(w http.ResponseWriter, r *http.Request) {
	query, err := contentQueryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	contents, err := s.queries.ListContents(r.Context(), query)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid content id"))
		return
	}
	detail, err := s.queries.GetContent(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}
	user, err := s.queries.GetUser(r.Context(), address)
	if errors.Is(err, ErrNotFound) {
		// Accounts without activity have an all-zero profile.
		user, err = newUser(address), nil
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUserContents(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}
	query, err := contentQueryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	query.Author = address
	contents, err := s.queries.ListContents(r.Context(), query)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

func (s *Server) handleUserLikes(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}
	page, err := pageFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	likes, err := s.queries.UserLikes(r.Context(), address, page)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likes)
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	s.handleFollows(w, r, s.queries.Following)
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	s.handleFollows(w, r, s.queries.Followers)
}

func (s *Server) handleFollows(w http.ResponseWriter, r *http.Request, list func(context.Context, string, Page) ([]Follow, error)) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}
	page, err := pageFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	follows, err := list(r.Context(), address, page)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, follows)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	from, err := int64Param(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := int64Param(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	format := r.URL.Query().Get("format")
	switch strings.ToLower(format) {
	case "", FormatCSV, FormatJSONL, FormatParquet:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported format %q", format))
		return
	}
	export, err := s.queries.ExportPayouts(r.Context(), format, from, to)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("X-Checksum-SHA256", export.Checksum)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=payouts.%s", export.Format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.log.Error("indexer query failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func contentQueryFromRequest(r *http.Request) (ContentQuery, error) {
	values := r.URL.Query()
	query := ContentQuery{OrderBy: values.Get("orderBy")}
	if query.OrderBy != "" {
		if _, ok := contentOrderColumns[query.OrderBy]; !ok {
			return ContentQuery{}, fmt.Errorf("unsupported orderBy %q", query.OrderBy)
		}
	}
	switch strings.ToLower(values.Get("direction")) {
	case "", "asc":
	case "desc":
		query.Descending = true
	default:
		return ContentQuery{}, fmt.Errorf("direction must be asc or desc")
	}
	page, err := pageFromRequest(r)
	if err != nil {
		return ContentQuery{}, err
	}
	query.Page = page
	return query, nil
}

func pageFromRequest(r *http.Request) (Page, error) {
	first, err := int64Param(r, "first")
	if err != nil {
		return Page{}, err
	}
	skip, err := int64Param(r, "skip")
	if err != nil {
		return Page{}, err
	}
	if first < 0 || skip < 0 {
		return Page{}, fmt.Errorf("first and skip must be non-negative")
	}
	return Page{First: int(first), Skip: int(skip)}, nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func addressParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid address %q", raw))
		return "", false
	}
	return common.HexToAddress(raw).Hex(), true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
