package server

import (
	"log/slog"
	"net/http"

	"filedrop/auth"
	"filedrop/services"

	"github.com/gorilla/mux"
)

// Server is the request router: it maps transport-level requests onto the
// core operations and marshals core errors into HTTP failure responses.
type Server struct {
	transfers services.ITransferService
	ledger    services.ILedgerService
	reader    services.IReaderService
	authSvc   services.IAuthService
	tokens    *auth.TokenManager
	log       *slog.Logger
	maxBody   int64
}

func NewServer(
	transfers services.ITransferService,
	ledger services.ILedgerService,
	reader services.IReaderService,
	authSvc services.IAuthService,
	tokens *auth.TokenManager,
	log *slog.Logger,
	maxChunkBytes int64,
) *Server {
	return &Server{
		transfers: transfers,
		ledger:    ledger,
		reader:    reader,
		authSvc:   authSvc,
		tokens:    tokens,
		log:       log,
		maxBody:   maxChunkBytes,
	}
}

// Handler builds the route table. Everything under /files requires a
// bearer token; /register and /token are the only public endpoints.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/token", s.handleToken).Methods(http.MethodPost)

	files := router.PathPrefix("/files").Subrouter()
	files.Use(auth.Middleware(s.tokens))
	files.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	files.HandleFunc("/download/{filename}", s.handleDownload).Methods(http.MethodGet)
	files.HandleFunc("/status/{filename}", s.handleStatus).Methods(http.MethodGet)
	files.HandleFunc("", s.handleList).Methods(http.MethodGet)
	files.HandleFunc("/{filename}", s.handleDelete).Methods(http.MethodDelete)

	return router
}
