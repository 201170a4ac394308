package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"docprobe/application/probe"
	"docprobe/application/services"
	"docprobe/domain/core/entities"
	"docprobe/domain/core/valueobjects"
	"docprobe/pkg/common"
	pkgerrors "docprobe/pkg/errors"
	"docprobe/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

// DocumentService is the subset of services.DocumentStoreClient the API uses
type DocumentService interface {
	CreateDocument(ctx context.Context, partitionKey, documentID string, opts ...services.CreateOption) (*entities.Document, error)
	GetDocument(ctx context.Context, partitionKey, documentID string) (*entities.Document, error)
	ReplaceDocument(ctx context.Context, doc *entities.Document, opts ...services.CreateOption) (*entities.Document, error)
	Keyspace() valueobjects.Keyspace
}

// Observer runs conflict-then-verify for one key pair
type Observer interface {
	CreateOrObserve(ctx context.Context, partitionKey, documentID string) (*probe.Observation, error)
}

// DocumentHandler handles document HTTP requests
type DocumentHandler struct {
	documents DocumentService
	observer  Observer
	errors    *pkgerrors.ErrorHandler
	logger    *zap.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents DocumentService, observer Observer, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		observer:  observer,
		errors:    errs,
		logger:    logger,
	}
}

// CreateDocumentRequest represents the request body for creating a document
type CreateDocumentRequest struct {
	ID         string `json:"id" validate:"required"`
	TTLSeconds *int   `json:"ttlSeconds,omitempty" validate:"omitempty,gt=0"`
}

// ReplaceDocumentRequest represents the optional body for replacing a document
type ReplaceDocumentRequest struct {
	TTLSeconds *int `json:"ttlSeconds,omitempty" validate:"omitempty,gt=0"`
}

// ObservationResponse reports a conflict-then-verify result
type ObservationResponse struct {
	Outcome        probe.Outcome      `json:"outcome"`
	Document       *entities.Document `json:"document,omitempty"`
	CreateAttempts int                `json:"createAttempts"`
	ReadAttempts   int                `json:"readAttempts"`
	DurationMillis int64              `json:"durationMillis"`
}

// CreateDocument handles POST /partitions/{partitionKey}/documents
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	partitionKey, err := pathParam(r, "partitionKey")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req CreateDocumentRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	doc, err := h.documents.CreateDocument(r.Context(), partitionKey, req.ID, ttlOptions(req.TTLSeconds)...)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	setETag(w, doc)
	common.RespondJSON(w, http.StatusCreated, doc)
}

// GetDocument handles GET /partitions/{partitionKey}/documents/{documentID}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	partitionKey, documentID, err := documentParams(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	doc, err := h.documents.GetDocument(r.Context(), partitionKey, documentID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	setETag(w, doc)
	common.RespondJSON(w, http.StatusOK, doc)
}

// ReplaceDocument handles PUT /partitions/{partitionKey}/documents/{documentID}.
// If-Match carries the version token the caller last saw.
func (h *DocumentHandler) ReplaceDocument(w http.ResponseWriter, r *http.Request) {
	partitionKey, documentID, err := documentParams(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	token := parseETag(r.Header.Get("If-Match"))
	if token == "" {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("If-Match header is required").
			WithCode(pkgerrors.CodeMissingVersion))
		return
	}

	var req ReplaceDocumentRequest
	if err := decodeBody(r, &req, true); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	key := h.documents.Keyspace().Derive(partitionKey, documentID)
	current := entities.NewDocument(key, nil).WithVersion(token)

	doc, err := h.documents.ReplaceDocument(r.Context(), current, ttlOptions(req.TTLSeconds)...)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	setETag(w, doc)
	common.RespondJSON(w, http.StatusOK, doc)
}

// ObserveDocument handles POST /partitions/{partitionKey}/documents/{documentID}/observe
func (h *DocumentHandler) ObserveDocument(w http.ResponseWriter, r *http.Request) {
	partitionKey, documentID, err := documentParams(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	obs, err := h.observer.CreateOrObserve(r.Context(), partitionKey, documentID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	status := http.StatusOK
	if obs.Outcome == probe.OutcomeCreated {
		status = http.StatusCreated
	}
	if obs.Document != nil {
		setETag(w, obs.Document)
	}
	common.RespondJSON(w, status, ObservationResponse{
		Outcome:        obs.Outcome,
		Document:       obs.Document,
		CreateAttempts: obs.CreateAttempts,
		ReadAttempts:   obs.ReadAttempts,
		DurationMillis: obs.Duration.Milliseconds(),
	})
}

func ttlOptions(ttl *int) []services.CreateOption {
	if ttl == nil {
		return nil
	}
	return []services.CreateOption{services.WithTTL(*ttl)}
}

func documentParams(r *http.Request) (string, string, error) {
	partitionKey, err := pathParam(r, "partitionKey")
	if err != nil {
		return "", "", err
	}
	documentID, err := pathParam(r, "documentID")
	if err != nil {
		return "", "", err
	}
	return partitionKey, documentID, nil
}

// pathParam returns the decoded URL parameter; keys may contain any
// character, including an encoded slash. chi matches on RawPath when the
// request has one, so only then is the parameter still escaped.
func pathParam(r *http.Request, name string) (string, error) {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value, nil
	}
	value, err := url.PathUnescape(value)
	if err != nil {
		return "", pkgerrors.NewValidationError("malformed " + name).WithCode(pkgerrors.CodeInvalidKey)
	}
	return value, nil
}

// decodeBody parses and validates a JSON body. optional allows an empty body.
func decodeBody(r *http.Request, v interface{}, optional bool) error {
	if err := common.ParseJSONBody(r, v, maxBodyBytes); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return pkgerrors.NewValidationError("invalid request body").WithCause(err)
	}
	if err := utils.ValidateStruct(v); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

func setETag(w http.ResponseWriter, doc *entities.Document) {
	if doc.VersionToken != "" {
		w.Header().Set("ETag", `"`+doc.VersionToken+`"`)
	}
}

// parseETag accepts a quoted or bare token and ignores the weak prefix
func parseETag(header string) string {
	token := strings.TrimSpace(header)
	token = strings.TrimPrefix(token, "W/")
	return strings.Trim(token, `"`)
}
