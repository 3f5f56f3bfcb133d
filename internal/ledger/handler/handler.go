// Package handler exposes ledger records over HTTP. Every record response
// carries its version token in the ETag header; PATCH requires the token back
// in If-Match and answers 409 with the current token when it is stale.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ledger/internal/ledger/models"
	"ledger/internal/ledger/service"
	dErrors "ledger/pkg/domain-errors"
	"ledger/pkg/platform/etag"
	"ledger/pkg/platform/httputil"
	"ledger/pkg/requestcontext"
)

// Service defines the ledger operations the handler needs.
type Service interface {
	Get(ctx context.Context, ref service.Ref) (models.Entity, error)
	List(ctx context.Context, kind models.Kind, owners ...int64) ([]models.Entity, error)
	Create(ctx context.Context, e models.Entity, owners ...int64) (models.Entity, error)
	Patch(ctx context.Context, ref service.Ref, ifMatch string, patch models.Patch) (models.Entity, error)
	Delete(ctx context.Context, ref service.Ref, ifMatch string) error
}

// Handler handles the /api/v1/documents resource tree.
type Handler struct {
	logger *slog.Logger
	ledger Service
}

// New creates a new ledger Handler.
func New(ledger Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, ledger: ledger}
}

// resource describes one level of the URL tree: the kind it serves, the URL
// parameter holding its id and the parameters of its owners, root first.
type resource struct {
	kind   models.Kind
	param  string
	owners []string
}

var (
	documents     = resource{kind: models.KindDocument, param: "documentId"}
	lineItems     = resource{kind: models.KindLineItem, param: "itemId", owners: []string{"documentId"}}
	costs         = resource{kind: models.KindCost, param: "costId", owners: []string{"documentId"}}
	costLineItems = resource{kind: models.KindCostLineItem, param: "costItemId", owners: []string{"documentId", "costId"}}
)

// Register registers the ledger routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1/documents", func(r chi.Router) {
		h.collection(r, documents, handleCreate[createDocumentRequest](h, documents))
		r.Route("/{documentId}", func(r chi.Router) {
			h.member(r, documents, handlePatch[models.DocumentPatch](h, documents))

			r.Route("/items", func(r chi.Router) {
				h.collection(r, lineItems, handleCreate[createLineItemRequest](h, lineItems))
				r.Route("/{itemId}", func(r chi.Router) {
					h.member(r, lineItems, handlePatch[models.LineItemPatch](h, lineItems))
				})
			})

			r.Route("/costs", func(r chi.Router) {
				h.collection(r, costs, handleCreate[createCostRequest](h, costs))
				r.Route("/{costId}", func(r chi.Router) {
					h.member(r, costs, handlePatch[models.CostPatch](h, costs))

					r.Route("/items", func(r chi.Router) {
						h.collection(r, costLineItems, handleCreate[createCostLineItemRequest](h, costLineItems))
						r.Route("/{costItemId}", func(r chi.Router) {
							h.member(r, costLineItems, handlePatch[models.CostLineItemPatch](h, costLineItems))
						})
					})
				})
			})
		})
	})
}

func (h *Handler) collection(r chi.Router, res resource, create http.HandlerFunc) {
	r.Get("/", h.handleList(res))
	r.Post("/", create)
}

func (h *Handler) member(r chi.Router, res resource, patch http.HandlerFunc) {
	r.Get("/", h.handleGet(res))
	r.Patch("/", patch)
	r.Delete("/", h.handleDelete(res))
}

func (h *Handler) handleGet(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ref, err := res.ref(r)
		if err != nil {
			h.writeError(ctx, w, err, "get")
			return
		}
		e, err := h.ledger.Get(ctx, ref)
		if err != nil {
			h.writeError(ctx, w, err, "get")
			return
		}
		writeEntity(w, http.StatusOK, e)
	}
}

func (h *Handler) handleList(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		owners, err := res.ownerIDs(r)
		if err != nil {
			h.writeError(ctx, w, err, "list")
			return
		}
		rows, err := h.ledger.List(ctx, res.kind, owners...)
		if err != nil {
			h.writeError(ctx, w, err, "list")
			return
		}
		if rows == nil {
			rows = []models.Entity{}
		}
		httputil.WriteJSON(w, http.StatusOK, rows)
	}
}

func (h *Handler) handleDelete(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ref, err := res.ref(r)
		if err != nil {
			h.writeError(ctx, w, err, "delete")
			return
		}
		if err := h.ledger.Delete(ctx, ref, r.Header.Get("If-Match")); err != nil {
			h.writeError(ctx, w, err, "delete")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type creatable interface {
	toEntity(owners []int64) models.Entity
}

func handleCreate[T any, P interface {
	*T
	creatable
}](h *Handler, res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		owners, err := res.ownerIDs(r)
		if err != nil {
			h.writeError(ctx, w, err, "create")
			return
		}
		req, ok := httputil.DecodeAndPrepare[T](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		created, err := h.ledger.Create(ctx, P(req).toEntity(owners), owners...)
		if err != nil {
			h.writeError(ctx, w, err, "create")
			return
		}
		w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+strconv.FormatInt(created.Metadata().ID, 10))
		writeEntity(w, http.StatusCreated, created)
	}
}

func handlePatch[T any, P interface {
	*T
	models.Patch
}](h *Handler, res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ref, err := res.ref(r)
		if err != nil {
			h.writeError(ctx, w, err, "update")
			return
		}
		ifMatch := r.Header.Get("If-Match")
		if err := service.CheckIfMatch(ifMatch); err != nil {
			h.writeError(ctx, w, err, "update")
			return
		}
		patch, ok := httputil.DecodeAndPrepare[T](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		updated, err := h.ledger.Patch(ctx, ref, ifMatch, P(patch))
		if err != nil {
			h.writeError(ctx, w, err, "update")
			return
		}
		writeEntity(w, http.StatusOK, updated)
	}
}

func writeEntity(w http.ResponseWriter, status int, e models.Entity) {
	w.Header().Set("ETag", etag.Quote(e.Metadata().Version.Token()))
	httputil.WriteJSON(w, status, e)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		h.logger.ErrorContext(ctx, "ledger request failed",
			"request_id", requestcontext.RequestID(ctx),
			"operation", op,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func (res resource) ref(r *http.Request) (service.Ref, error) {
	owners, err := res.ownerIDs(r)
	if err != nil {
		return service.Ref{}, err
	}
	id, err := pathID(r, res.param)
	if err != nil {
		return service.Ref{}, err
	}
	return service.Ref{Kind: res.kind, ID: id, Owners: owners}, nil
}

func (res resource) ownerIDs(r *http.Request) ([]int64, error) {
	if len(res.owners) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(res.owners))
	for i, name := range res.owners {
		id, err := pathID(r, name)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid "+name+": "+raw)
	}
	return id, nil
}
