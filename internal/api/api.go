// Package api exposes the unlock agent's HTTP surface: a password
// verification endpoint that trades a correct password for a short-lived
// unlock token, and a session endpoint that validates presented tokens.
// The agent is meant to listen on loopback only.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/RisPNG/stealth-lock/internal/token"
	"github.com/RisPNG/stealth-lock/internal/verify"
)

// PasswordVerifier is the slice of the verifier the API needs.
type PasswordVerifier interface {
	Verify(cred verify.Credential) verify.Result
}

type contextKey string

const claimsContextKey contextKey = "claims"

// Server is the unlock agent's HTTP handler.
type Server struct {
	router   chi.Router
	verifier PasswordVerifier
	issuer   *token.Issuer
	origins  []string
	logger   *slog.Logger
}

// NewServer wires the routes. origins is the CORS allow-list for the
// desktop-extension callers.
func NewServer(verifier PasswordVerifier, issuer *token.Issuer, origins []string, logger *slog.Logger) *Server {
	s := &Server{
		verifier: verifier,
		issuer:   issuer,
		origins:  origins,
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.healthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/verify", s.verifyPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/session", s.session)
		})
	})

	s.router = r
}

type verifyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) verifyPassword(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username is required"})
		return
	}

	res := s.verifier.Verify(verify.Credential{
		Username: req.Username,
		Secret:   []byte(req.Password),
	})
	s.logger.Info("verification request",
		"username", req.Username,
		"outcome", res.Outcome.String(),
		"reason", res.Reason,
	)

	switch res.Outcome {
	case verify.Authenticated:
		signed, expiresAt, err := s.issuer.Generate(req.Username)
		if err != nil {
			s.logger.Error("token generation failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to issue token"})
			return
		}
		writeJSON(w, http.StatusOK, verifyResponse{
			Token:     signed,
			ExpiresAt: expiresAt,
			Username:  req.Username,
		})
	case verify.Rejected:
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	default:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no authentication method available"})
	}
}

type sessionResponse struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(claimsContextKey).(*token.Claims)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireToken validates the bearer token and puts its claims on the
// request context.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid authorization header format"})
			return
		}

		claims, err := s.issuer.Validate(parts[1])
		if err != nil {
			if err == token.ErrTokenExpired {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "token expired"})
				return
			}
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
