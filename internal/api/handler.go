package api

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"bookmark_sync/internal/domain"
	"bookmark_sync/internal/service"
)

// ResumeSecretHeader authenticates the resume trigger.
const ResumeSecretHeader = "X-Resume-Secret"

const maxBodySize = 1 << 10

type BookmarkSyncer interface {
	Sync(ctx context.Context, req service.SyncRequest) (*domain.SyncResult, error)
	ResumeDue(ctx context.Context) ([]domain.ResumeOutcome, error)
}

type ContentLister interface {
	ListByOwner(ctx context.Context, accountID string) ([]domain.ContentRecord, error)
}

type Handler struct {
	syncer       BookmarkSyncer
	contents     ContentLister
	resumeSecret string
	validate     *validator.Validate
	logger       *slog.Logger
}

func NewHandler(syncer BookmarkSyncer, contents ContentLister, resumeSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		syncer:       syncer,
		contents:     contents,
		resumeSecret: resumeSecret,
		validate:     validator.New(),
		logger:       logger,
	}
}

type SyncRequest struct {
	CutoffYear *int `json:"cutoff_year,omitempty" validate:"omitempty,min=2006,max=2100"`
}

type SyncResponse struct {
	AttemptID        string            `json:"attempt_id"`
	Mode             domain.SyncMode   `json:"mode"`
	Status           domain.SyncStatus `json:"status"`
	EntriesInserted  int               `json:"entries_inserted"`
	EntriesSeen      int               `json:"entries_seen"`
	APICallCount     int               `json:"api_call_count"`
	DurationMs       int64             `json:"duration_ms"`
	RateLimitResetAt *time.Time        `json:"rate_limit_reset_at,omitempty"`
	ResumeCursor     *string           `json:"resume_cursor,omitempty"`
}

type RateLimitResponse struct {
	Error        string     `json:"error"`
	ResetAt      *time.Time `json:"reset_at"`
	RetryAtHuman string     `json:"retry_at_human"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ResumeOutcomeResponse struct {
	AttemptID string        `json:"attempt_id"`
	AccountID string        `json:"account_id"`
	Result    *SyncResponse `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type ResumeResponse struct {
	Resumed  int                     `json:"resumed"`
	Outcomes []ResumeOutcomeResponse `json:"outcomes"`
}

type BookmarkResponse struct {
	ID                string             `json:"id"`
	URL               string             `json:"url"`
	Kind              domain.ContentKind `json:"kind"`
	Title             string             `json:"title,omitempty"`
	Body              string             `json:"body"`
	AuthorHandle      string             `json:"author_handle"`
	Media             []domain.Media     `json:"media"`
	OriginalCreatedAt *time.Time         `json:"original_created_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// SyncBookmarks runs one sync for the account in the URL and answers with
// the run summary. An interrupted run is a success.
func (h *Handler) SyncBookmarks(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req SyncRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.syncer.Sync(r.Context(), service.SyncRequest{
		AccountID:  accountID,
		CutoffYear: req.CutoffYear,
	})
	if err != nil {
		h.writeSyncError(w, accountID, err)
		return
	}

	writeJSON(w, http.StatusOK, newSyncResponse(result))
}

func (h *Handler) writeSyncError(w http.ResponseWriter, accountID string, err error) {
	var rateLimited *domain.RateLimitedError

	switch {
	case errors.Is(err, domain.ErrSyncAlreadyRunning):
		writeError(w, http.StatusConflict, "sync already in progress")
	case errors.Is(err, domain.ErrCredentialUnavailable):
		writeError(w, http.StatusBadRequest, "account has no usable X credential")
	case errors.As(err, &rateLimited):
		resp := RateLimitResponse{
			Error:        "rate limited by X API",
			RetryAtHuman: humanReset(rateLimited.ResetAt),
		}
		if !rateLimited.ResetAt.IsZero() {
			resetAt := rateLimited.ResetAt.UTC()
			resp.ResetAt = &resetAt
		}
		writeJSON(w, http.StatusTooManyRequests, resp)
	default:
		h.logger.Error("sync request failed", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
	}
}

// ResumeSyncs re-enters every due interrupted attempt. It is meant for an
// external cron and is guarded by a shared secret.
func (h *Handler) ResumeSyncs(w http.ResponseWriter, r *http.Request) {
	if !h.authorizedResume(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	outcomes, err := h.syncer.ResumeDue(r.Context())
	if err != nil && len(outcomes) == 0 {
		h.logger.Error("resume request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "resume failed")
		return
	}

	resp := ResumeResponse{Outcomes: make([]ResumeOutcomeResponse, 0, len(outcomes))}
	for _, o := range outcomes {
		item := ResumeOutcomeResponse{AttemptID: o.AttemptID, AccountID: o.AccountID}
		if o.Err != nil {
			item.Error = o.Err.Error()
		} else {
			resp.Resumed++
		}
		if o.Result != nil {
			item.Result = newSyncResponse(o.Result)
		}
		resp.Outcomes = append(resp.Outcomes, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) authorizedResume(r *http.Request) bool {
	if h.resumeSecret == "" {
		return false
	}
	got := r.Header.Get(ResumeSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.resumeSecret)) == 1
}

// ListBookmarks returns the account's mirrored bookmarks in insertion order.
func (h *Handler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	records, err := h.contents.ListByOwner(r.Context(), accountID)
	if err != nil {
		h.logger.Error("list bookmarks failed", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "list bookmarks failed")
		return
	}

	resp := make([]BookmarkResponse, 0, len(records))
	for _, rec := range records {
		item := BookmarkResponse{
			ID:           rec.ID,
			URL:          rec.URL,
			Kind:         rec.Kind,
			Title:        rec.Title,
			Body:         rec.Body,
			AuthorHandle: rec.AuthorHandle,
			Media:        rec.Media,
			CreatedAt:    rec.CreatedAt,
		}
		if item.Media == nil {
			item.Media = []domain.Media{}
		}
		if !rec.OriginalCreatedAt.IsZero() {
			created := rec.OriginalCreatedAt
			item.OriginalCreatedAt = &created
		}
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func newSyncResponse(r *domain.SyncResult) *SyncResponse {
	return &SyncResponse{
		AttemptID:        r.AttemptID,
		Mode:             r.Mode,
		Status:           r.Status,
		EntriesInserted:  r.EntriesInserted,
		EntriesSeen:      r.EntriesSeen,
		APICallCount:     r.APICallCount,
		DurationMs:       r.Duration.Milliseconds(),
		RateLimitResetAt: r.RateLimitResetAt,
		ResumeCursor:     r.ResumeCursor,
	}
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func humanReset(resetAt time.Time) string {
	if resetAt.IsZero() {
		return "later"
	}
	return resetAt.UTC().Format(time.RFC1123)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
