package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"

	"kamati-backend/internal/models"
	"kamati-backend/internal/ratings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RatingSubmitter is what the handler needs from the rating aggregator.
type RatingSubmitter interface {
	Submit(ctx context.Context, noteID bson.ObjectID, userID string, stars int) (ratings.Result, error)
}

// NoteLister returns all notes in display order (best-rated first).
type NoteLister interface {
	List(ctx context.Context) ([]models.Note, error)
}

type NotesHandler struct {
	aggregator RatingSubmitter
	notes      NoteLister
}

func NewNotesHandler(aggregator RatingSubmitter, notes NoteLister) *NotesHandler {
	return &NotesHandler{
		aggregator: aggregator,
		notes:      notes,
	}
}

// userIDValue tolerates clients sending userId as a JSON number instead of a
// string (seen in the wild from the SPA's localStorage handling); either way
// it is normalized to a string before lookup and storage.
type userIDValue string

func (u *userIDValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*u = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = userIDValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("userId must be a string or number")
	}
	*u = userIDValue(n.String())
	return nil
}

type RateNoteRequest struct {
	NoteID string      `json:"noteId"`
	UserID userIDValue `json:"userId"`
	Stars  *float64    `json:"stars"`
}

// --- POST /api/rate-note ---

func (h *NotesHandler) RateNote(w http.ResponseWriter, r *http.Request) {
	var req RateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.NoteID == "" || req.Stars == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "noteId and stars are required"})
		return
	}

	// Integer-valued floats (4.0) are fine, fractional stars (4.5) are not.
	stars := *req.Stars
	if stars != math.Trunc(stars) || stars < 1 || stars > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stars must be 1-5"})
		return
	}

	noteID, err := bson.ObjectIDFromHex(req.NoteID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid noteId"})
		return
	}

	result, err := h.aggregator.Submit(r.Context(), noteID, string(req.UserID), int(stars))
	if err != nil {
		switch {
		case errors.Is(err, ratings.ErrNoteNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Note not found"})
		case errors.Is(err, ratings.ErrAlreadyRated):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "You have already rated this note"})
		case errors.Is(err, ratings.ErrInvalidStars):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stars must be 1-5"})
		default:
			log.Printf("Error submitting rating: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		}
		return
	}

	message := "Rating updated"
	if result.Created {
		message = "Rating saved"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"note":    result.Note,
	})
}

// --- GET /api/notes ---

func (h *NotesHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.List(r.Context())
	if err != nil {
		log.Printf("Error listing notes: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notes": notes,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
