package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leasedesk/reconcile/internal/collector"
	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for captures and element queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/api", func(r chi.Router) {
			r.Post("/captures", handleCaptures(env))
			r.Get("/elements", handleListElements(env.Store))
			r.Get("/elements/{id}", handleGetElement(env.Store))
			r.Get("/review", handleListReview(env.Store))
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func handleCaptures(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var in collector.CaptureInput
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if in.TenantID == "" || in.PageID == "" {
			writeError(w, http.StatusBadRequest, "tenant_id and page_id are required")
			return
		}

		result, err := env.Pipeline.ProcessCapture(req.Context(), in)
		if err != nil {
			zap.L().Error("capture processing failed",
				zap.String("page_id", in.PageID),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "capture processing failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleListElements(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		tenant := req.URL.Query().Get("tenant")
		if tenant == "" {
			writeError(w, http.StatusBadRequest, "tenant is required")
			return
		}

		filter := store.ElementFilter{Limit: 200}
		if t := req.URL.Query().Get("type"); t != "" {
			filter.ElementType = model.ElementType(t)
		}
		if req.URL.Query().Get("low_confidence") == "true" {
			low := true
			filter.LowConfidence = &low
		}

		elements, err := st.ListElements(req.Context(), tenant, filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list elements failed")
			return
		}
		writeJSON(w, http.StatusOK, elements)
	}
}

func handleGetElement(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")

		el, err := st.GetElement(req.Context(), id)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "element not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "get element failed")
			return
		}

		refs, err := st.ListPageRefs(req.Context(), el.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list page refs failed")
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Element *model.SharedElement  `json:"element"`
			Pages   []model.PageReference `json:"pages"`
		}{el, refs})
	}
}

func handleListReview(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		items, err := st.ListUnresolved(req.Context(), store.UnresolvedFilter{
			TenantID: req.URL.Query().Get("tenant"),
			Reason:   model.UnresolvedReason(req.URL.Query().Get("reason")),
			Limit:    200,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list review queue failed")
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
