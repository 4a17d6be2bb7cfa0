package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/gorilla/mux"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"messagely/internal/auth"
	"messagely/internal/storage"
)

// Server defines fields used in HTTP processing
type Server struct {
	logger     *zap.SugaredLogger
	httpServer *http.Server
	h          handler
}

// NewServer returns new Server struct with provided zap.SugaredLogger,
// storage.Store and auth.TokenService
func NewServer(logger *zap.SugaredLogger, store *storage.Store, tokens *auth.TokenService, opts ...Option) (*Server, error) {
	srv := &Server{
		logger: logger,
		h: handler{
			logger: logger,
			store:  store,
			tokens: tokens,
			parsers: parsers{
				loginPool:         fastjson.ParserPool{},
				registerPool:      fastjson.ParserPool{},
				createMessagePool: fastjson.ParserPool{},
			},
		},
	}

	srv.httpServer = &http.Server{
		Addr:    "0.0.0.0:9000",
		Handler: srv.router(),
	}

	for _, opt := range opts {
		opt.apply(srv.httpServer)
	}

	return srv, nil
}

// router wires the public routes and the token-guarded subrouter.
// Login and registration are the only operations reachable without a token.
func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests(s.logger.Desugar()))

	r.Handle("/login", enforcePOSTJSON(http.HandlerFunc(s.h.login))).Methods("POST")
	r.Handle("/register", enforcePOSTJSON(http.HandlerFunc(s.h.register))).Methods("POST")

	authed := r.PathPrefix("/").Subrouter()
	authed.Use(authenticate(s.h.tokens))
	authed.HandleFunc("/users", s.h.listUsers).Methods("GET")
	authed.HandleFunc("/users/{username}", s.h.userDetail).Methods("GET")
	authed.HandleFunc("/users/{username}/to", s.h.messagesTo).Methods("GET")
	authed.HandleFunc("/users/{username}/from", s.h.messagesFrom).Methods("GET")
	authed.Handle("/messages", enforcePOSTJSON(http.HandlerFunc(s.h.createMessage))).Methods("POST")
	authed.HandleFunc("/messages/{id}", s.h.messageDetail).Methods("GET")
	authed.HandleFunc("/messages/{id}/read", s.h.markRead).Methods("POST")

	return r
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	s.logger.Info("Closing store")
	s.h.store.Close()
	s.logger.Info("Store is closed")

	return nil
}
