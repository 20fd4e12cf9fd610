package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/commonshare/flow-backend/internal/api/handlers"
	"github.com/commonshare/flow-backend/internal/api/httpx"
	"github.com/commonshare/flow-backend/internal/api/validate"
	"github.com/commonshare/flow-backend/internal/auth"
	"github.com/commonshare/flow-backend/internal/config"
	"github.com/commonshare/flow-backend/internal/metrics"
	"github.com/commonshare/flow-backend/internal/middleware"
	"github.com/commonshare/flow-backend/internal/models"
	"github.com/commonshare/flow-backend/internal/services"
)

type Deps struct {
	Cfg        config.Config
	TM         *auth.TokenManager
	Accounts   *services.AccountService
	Balances   *services.BalanceService
	Transfers  *services.TransferService
	Governance *services.GovernanceService
	Progress   *services.ProgressionService
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	authHandler := handlers.NewAuthHandler(d.Accounts, d.TM)
	authMW := middleware.NewAuthMiddleware(d.TM, d.Cfg.Env)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)

			// ---------- transfers ----------
			r.Post("/transfers", func(w http.ResponseWriter, r *http.Request) {
				senderID, _ := middleware.AccountID(r.Context())
				var req struct {
					RecipientAccountID string `json:"recipient_account_id"`
					Amount             int64  `json:"amount"`
					Description        string `json:"description,omitempty"`
				}
				if err := httpx.DecodeStrict(r, &req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "malformed body", nil)
					return
				}
				if f := validate.Required("recipient_account_id", req.RecipientAccountID); f != nil {
					httpx.WriteError(w, http.StatusBadRequest, "validation", "invalid fields", validate.Errs{*f})
					return
				}
				tx, err := d.Transfers.Transfer(r.Context(), senderID, req.RecipientAccountID, req.Amount, req.Description)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, map[string]any{
					"transaction_id":    tx.ID,
					"base_amount":       tx.BaseAmount,
					"flow_multiplier":   float64(tx.Multiplier) / 100,
					"total_credited":    tx.TotalCredited,
					"pool_contribution": tx.PoolContribution,
				})
			})

			r.Get("/transactions", func(w http.ResponseWriter, r *http.Request) {
				accountID, _ := middleware.AccountID(r.Context())
				limit, offset := pageParams(r, 50)
				txs, err := d.Transfers.ListByAccount(r.Context(), accountID, limit, offset)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, txs)
			})

			r.Get("/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
				tx, err := d.Transfers.GetByID(r.Context(), chi.URLParam(r, "id"))
				if err != nil {
					httpx.WriteError(w, http.StatusNotFound, "not_found", "transaction not found", nil)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, tx)
			})

			// ---------- balances & pools ----------
			r.Get("/balances/current", func(w http.ResponseWriter, r *http.Request) {
				accountID, _ := middleware.AccountID(r.Context())
				b, err := d.Balances.Current(r.Context(), accountID)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{"account_id": b.AccountID, "credits": b.Amount})
			})

			r.Get("/pools", func(w http.ResponseWriter, r *http.Request) {
				pools, err := d.Balances.Pools(r.Context())
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, pools)
			})

			// ---------- pool request governance ----------
			r.Post("/pool-requests", func(w http.ResponseWriter, r *http.Request) {
				requesterID, _ := middleware.AccountID(r.Context())
				var req struct {
					PoolType string `json:"pool_type"`
					Amount   int64  `json:"amount"`
					Reason   string `json:"reason"`
				}
				if err := httpx.DecodeStrict(r, &req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "malformed body", nil)
					return
				}
				pr, err := d.Governance.CreateRequest(r.Context(), requesterID, req.PoolType, req.Amount, req.Reason)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, map[string]any{"id": pr.ID, "status": pr.Status})
			})

			r.Get("/pool-requests", func(w http.ResponseWriter, r *http.Request) {
				status := models.RequestStatus(r.URL.Query().Get("status"))
				prs, err := d.Governance.List(r.Context(), status)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, prs)
			})

			r.Get("/pool-requests/{id}", func(w http.ResponseWriter, r *http.Request) {
				pr, err := d.Governance.Get(r.Context(), chi.URLParam(r, "id"))
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, pr)
			})

			r.Post("/pool-requests/{id}/vote", func(w http.ResponseWriter, r *http.Request) {
				voterID, _ := middleware.AccountID(r.Context())
				var req struct {
					InFavor bool `json:"in_favor"`
				}
				if err := httpx.DecodeStrict(r, &req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "malformed body", nil)
					return
				}
				pr, err := d.Governance.Vote(r.Context(), chi.URLParam(r, "id"), voterID, req.InFavor)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{
					"votes_for":     pr.VotesFor,
					"votes_against": pr.VotesAgainst,
					"status":        pr.Status,
				})
			})

			// ---------- economy tier ----------
			r.Get("/economy/tier", func(w http.ResponseWriter, r *http.Request) {
				accountID, _ := middleware.AccountID(r.Context())
				p, feats, err := d.Progress.TierFor(r.Context(), accountID)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{
					"tier":              p.Tier,
					"unlocked_features": feats,
				})
			})

			// ---------- admin ----------
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))
				// Legacy migration: force an account straight to advanced.
				r.Post("/admin/accounts/{id}/advance", func(w http.ResponseWriter, r *http.Request) {
					p, err := d.Progress.ForceAdvanced(r.Context(), chi.URLParam(r, "id"))
					if err != nil {
						httpx.WriteDomainError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, p)
				})
			})
		})
	})

	return r
}

func pageParams(r *http.Request, defLimit int) (limit, offset int) {
	limit = defLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
