package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"kamati-backend/internal/middleware"
	"kamati-backend/internal/models"
	"kamati-backend/internal/ratings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CatalogStore is what the admin handler needs from note persistence.
type CatalogStore interface {
	Create(ctx context.Context, note *models.Note) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Note, error)
	SetAggregate(ctx context.Context, id bson.ObjectID, avg float64, total int64) error
}

// RatingSummarizer derives a note's aggregate from the rating rows themselves.
type RatingSummarizer interface {
	AggregateByNote(ctx context.Context, noteID bson.ObjectID) (float64, int64, error)
}

type AdminHandler struct {
	notes      CatalogStore
	aggregates RatingSummarizer
}

func NewAdminHandler(notes CatalogStore, aggregates RatingSummarizer) *AdminHandler {
	return &AdminHandler{
		notes:      notes,
		aggregates: aggregates,
	}
}

type CreateNoteRequest struct {
	Title    string `json:"title"`
	DriveURL string `json:"driveUrl"`
}

// --- POST /api/admin/notes ---

// Notes enter the catalog here (seed/import); ratings are the only thing that
// mutates them afterwards.
func (h *AdminHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Title == "" || req.DriveURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and driveUrl are required"})
		return
	}

	note := &models.Note{
		Title:    req.Title,
		DriveURL: req.DriveURL,
	}
	if err := h.notes.Create(r.Context(), note); err != nil {
		log.Printf("Error creating note (admin %s): %v", middleware.GetAdminEmail(r.Context()), err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create note"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "note created",
		"note":    note,
	})
}

// --- POST /api/admin/notes/{id}/recompute ---

// RecomputeAggregate re-derives avgRating/totalRatings from the rating rows,
// healing any drift the incremental arithmetic may have accumulated (e.g. an
// orphaned rating left behind by a mid-sequence storage failure).
func (h *AdminHandler) RecomputeAggregate(w http.ResponseWriter, r *http.Request) {
	noteID, err := bson.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid noteId"})
		return
	}

	note, err := h.notes.FindByID(r.Context(), noteID)
	if err != nil {
		log.Printf("Error loading note for recompute: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	if note == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Note not found"})
		return
	}

	avg, total, err := h.aggregates.AggregateByNote(r.Context(), noteID)
	if err != nil {
		log.Printf("Error aggregating ratings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	if total == 0 {
		avg = 0
	} else {
		avg = ratings.Round2(avg)
	}

	if err := h.notes.SetAggregate(r.Context(), noteID, avg, total); err != nil {
		log.Printf("Error writing recomputed aggregate: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}

	note.AvgRating = avg
	note.TotalRatings = total
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "aggregate recomputed",
		"note":    note,
	})
}
