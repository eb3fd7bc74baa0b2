package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gogithub "github.com/google/go-github/v41/github"
	"golang.org/x/sync/errgroup"

	"github.com/danielolaszy/prcommenter/internal/apperr"
	"github.com/danielolaszy/prcommenter/internal/logging"
)

const (
	maxRequestBody  = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Service is the relay behaviour the HTTP surface exposes.
type Service interface {
	ExchangeCode(ctx context.Context, code string) (json.RawMessage, error)
	FetchCurrentUser(ctx context.Context, authorization string) (*gogithub.User, error)
	CreateWorkflow(ctx context.Context, owner, repo string) (*Confirmation, error)
}

var _ Service = (*Relay)(nil)

// Server hosts the relay endpoints.
type Server struct {
	service Service
}

// NewServer returns a Server for service.
func NewServer(service Service) *Server {
	return &Server{service: service}
}

// RegisterRoutes registers the relay endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /getAccessToken", s.handleGetAccessToken)
	mux.HandleFunc("GET /getUserData", s.handleGetUserData)
	mux.HandleFunc("POST /createWorkflow", s.handleCreateWorkflow)
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// Handler returns the routes wrapped in the relay middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return withRequestID(withAccessLog(withCORS(mux)))
}

// Run serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logging.GetLogger().Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("server is running", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logging.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleGetAccessToken(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	logging.Debug("exchanging authorization code", "code", logging.MaskSensitive(code))

	payload, err := s.service.ExchangeCode(r.Context(), code)
	if err != nil {
		logging.Error("error fetching access token", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch access token.")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleGetUserData(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.FetchCurrentUser(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		if apperr.IsMissingAuth(err) {
			writeError(w, http.StatusUnauthorized, "Authorization header is missing.")
			return
		}
		// A response from GitHub is relayed as-is; only transport failures
		// become a relay error.
		if ue, ok := apperr.AsUpstream(err); ok && ue.Status != 0 && len(ue.Body) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(ue.Status)
			_, _ = w.Write(ue.Body)
			return
		}
		logging.Error("error fetching user data", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch user data.")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type createWorkflowRequest struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	// An empty body is a request without owner and repo.
	var req createWorkflowRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	confirmation, err := s.service.CreateWorkflow(r.Context(), req.Owner, req.Repo)
	if err != nil {
		if apperr.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "Owner and repository name are required.")
			return
		}
		logging.Error("error creating workflow file", "owner", req.Owner, "repo", req.Repo, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create workflow file.")
		return
	}

	logging.Info("workflow file created", "owner", req.Owner, "repo", req.Repo, "commit", confirmation.CommitSHA)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Workflow file created successfully!"})
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}
