package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/trogers1052/stock-run-tracker/internal/metrics"
)

// RouterOptions configures the outer middleware
type RouterOptions struct {
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler, opts RouterOptions) http.Handler {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondNotFound(w)
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondDetail(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %q not allowed.", r.Method))
	})

	r := mux.NewRouter()
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = methodNotAllowed

	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Handle("/metrics", opts.Metrics.Handler()).Methods("GET")
	}

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// User routes
	users := r.PathPrefix("/user").Subrouter()
	users.NotFoundHandler = notFound
	users.MethodNotAllowedHandler = methodNotAllowed
	users.HandleFunc("/create", handler.CreateUser).Methods("POST")
	users.HandleFunc("/token", handler.CreateToken).Methods("POST")
	users.Handle("/me", handler.authenticate(http.HandlerFunc(handler.GetMe))).Methods("GET")
	users.Handle("/me", handler.authenticate(http.HandlerFunc(handler.UpdateMe))).Methods("PUT", "PATCH")

	// Stock routes
	stock := r.PathPrefix("/stock").Subrouter()
	stock.NotFoundHandler = notFound
	stock.MethodNotAllowedHandler = methodNotAllowed
	stock.Use(handler.authenticate)
	stock.HandleFunc("/stocks", handler.ListStocks).Methods("GET")
	stock.HandleFunc("/stocks", handler.CreateStock).Methods("POST")
	stock.HandleFunc("/stocks/{id:[0-9]+}", handler.GetStock).Methods("GET")
	stock.HandleFunc("/stocks/{id:[0-9]+}", handler.UpdateStock).Methods("PUT", "PATCH")
	stock.HandleFunc("/stocks/{id:[0-9]+}", handler.DeleteStock).Methods("DELETE")
	stock.HandleFunc("/stockbases", handler.ListStockBases).Methods("GET")
	stock.HandleFunc("/stockbases/{id:[0-9]+}", handler.GetStockBase).Methods("GET")
	stock.HandleFunc("/stockbases/{id:[0-9]+}", handler.UpdateStockBase).Methods("PUT", "PATCH")
	stock.HandleFunc("/stockbases/{id:[0-9]+}", handler.DeleteStockBase).Methods("DELETE")

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})

	return middleware.RequestID(
		middleware.Recoverer(
			handler.logRequests(
				corsHandler(
					stripTrailingSlash(r),
				),
			),
		),
	)
}
