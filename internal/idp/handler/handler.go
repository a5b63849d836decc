package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"oidcbridge/internal/idp/adapter"
	"oidcbridge/internal/idp/models"
	"oidcbridge/internal/platform/middleware"
	"oidcbridge/internal/transport/http/shared"
	dErrors "oidcbridge/pkg/domain-errors"
	"oidcbridge/pkg/platform/sentinel"
)

// InteractionService defines the interface for interaction submissions.
type InteractionService interface {
	SubmitLogin(ctx context.Context, uid, accountID string) (string, error)
	SubmitConsent(ctx context.Context, uid string) (string, error)
	Abort(ctx context.Context, uid string) (string, error)
}

// ClientRegistry defines the read side of the client catalog.
type ClientRegistry interface {
	FindByClientID(ctx context.Context, clientID string) (*models.Client, error)
}

// AdapterRegistry hands out per-kind artifact adapters, used here for the
// admin artifact-inspection endpoint.
type AdapterRegistry interface {
	Adapter(name string) (adapter.Adapter, error)
}

// Handler handles interaction and client endpoints.
type Handler struct {
	logger       *slog.Logger
	interactions InteractionService
	clients      ClientRegistry
	adapters     AdapterRegistry
	jwtValidator middleware.JWTValidator
}

// New creates a new idp Handler.
func New(
	interactions InteractionService,
	clients ClientRegistry,
	adapters AdapterRegistry,
	logger *slog.Logger,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		interactions: interactions,
		clients:      clients,
		adapters:     adapters,
		jwtValidator: jwtValidator,
	}
}

// Register registers the idp routes with the chi router. Interaction
// submissions come from the end user's browser session; the client catalog
// read is an administrative endpoint behind bearer auth.
func (h *Handler) Register(r chi.Router) {
	interactionRouter := chi.NewRouter()
	interactionRouter.Use(middleware.Recovery(h.logger))
	interactionRouter.Use(middleware.RequestID)
	interactionRouter.Use(middleware.Logger(h.logger))
	interactionRouter.Use(middleware.Timeout(30 * time.Second))
	interactionRouter.Use(middleware.Device)
	interactionRouter.Post("/{uid}/login", h.handleSubmitLogin)
	interactionRouter.Post("/{uid}/consent", h.handleSubmitConsent)
	interactionRouter.Post("/{uid}/abort", h.handleAbort)

	adminRouter := chi.NewRouter()
	adminRouter.Use(middleware.Recovery(h.logger))
	adminRouter.Use(middleware.RequestID)
	adminRouter.Use(middleware.Logger(h.logger))
	adminRouter.Use(middleware.Timeout(10 * time.Second))
	adminRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	adminRouter.Get("/{client_id}", h.handleGetClient)

	artifactRouter := chi.NewRouter()
	artifactRouter.Use(middleware.Recovery(h.logger))
	artifactRouter.Use(middleware.RequestID)
	artifactRouter.Use(middleware.Logger(h.logger))
	artifactRouter.Use(middleware.Timeout(10 * time.Second))
	artifactRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	artifactRouter.Get("/{kind}/{id}", h.handleGetArtifact)

	r.Mount("/interaction", interactionRouter)
	r.Mount("/clients", adminRouter)
	r.Mount("/artifacts", artifactRouter)
}

type loginRequest struct {
	AccountID string `json:"account_id"`
}

type redirectResponse struct {
	RedirectTo string `json:"redirect_to"`
}

// handleSubmitLogin records a verified login for the interaction.
func (h *Handler) handleSubmitLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := chi.URLParam(r, "uid")

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid login request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	returnTo, err := h.interactions.SubmitLogin(ctx, uid, req.AccountID)
	if err != nil {
		h.writeInteractionError(w, r, "login", uid, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, redirectResponse{RedirectTo: returnTo})
}

func (h *Handler) handleSubmitConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := chi.URLParam(r, "uid")

	returnTo, err := h.interactions.SubmitConsent(ctx, uid)
	if err != nil {
		h.writeInteractionError(w, r, "consent", uid, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, redirectResponse{RedirectTo: returnTo})
}

func (h *Handler) handleAbort(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := chi.URLParam(r, "uid")

	returnTo, err := h.interactions.Abort(ctx, uid)
	if err != nil {
		h.writeInteractionError(w, r, "abort", uid, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, redirectResponse{RedirectTo: returnTo})
}

func (h *Handler) writeInteractionError(w http.ResponseWriter, r *http.Request, op, uid string, err error) {
	ctx := r.Context()
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound),
		dErrors.HasCode(err, dErrors.CodeBadRequest),
		dErrors.HasCode(err, dErrors.CodeInvalidInput),
		dErrors.HasCode(err, dErrors.CodeConsentFailed):
		h.logger.WarnContext(ctx, "interaction submission rejected",
			"op", op,
			"uid", uid,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
	default:
		h.logger.ErrorContext(ctx, "interaction submission failed",
			"op", op,
			"uid", uid,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "interaction submission failed"))
	}
}

// handleGetClient returns the catalog entry for one relying party.
func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := chi.URLParam(r, "client_id")

	client, err := h.clients.FindByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "client not found"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to load client",
			"client_id", clientID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load client"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, client)
}

// handleGetArtifact is an administrative read of one stored artifact, in
// the form the flow engine would receive it (consumed marker included).
func (h *Handler) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind := chi.URLParam(r, "kind")
	id := chi.URLParam(r, "id")

	ad, err := h.adapters.Adapter(kind)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	payload, err := ad.Find(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load artifact",
			"kind", kind,
			"id", id,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load artifact"))
		return
	}
	if payload == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "artifact not found"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, payload)
}
