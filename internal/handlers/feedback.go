package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"kamati-backend/internal/models"
	"kamati-backend/internal/slack"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// FeedbackStore is what the handler needs from feedback persistence.
type FeedbackStore interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Feedback, error)
}

type FeedbackHandler struct {
	feedback FeedbackStore
	notifier slack.Notifier
}

func NewFeedbackHandler(feedback FeedbackStore, notifier slack.Notifier) *FeedbackHandler {
	return &FeedbackHandler{
		feedback: feedback,
		notifier: notifier,
	}
}

type SubmitFeedbackRequest struct {
	Text           string `json:"text"`
	Email          string `json:"email"`
	NoteID         string `json:"noteId"`
	IdempotencyKey string `json:"idempotency_key"`
}

// --- POST /api/feedback ---

// Feedback is open to anonymous visitors; the idempotency key (generated by
// the SPA per popup session) is what stops double-submits on flaky networks.
func (h *FeedbackHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req SubmitFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "feedback text is required"})
		return
	}

	if req.IdempotencyKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "idempotency_key is required"})
		return
	}

	var noteID *bson.ObjectID
	if req.NoteID != "" {
		id, err := bson.ObjectIDFromHex(req.NoteID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid noteId"})
			return
		}
		noteID = &id
	}

	existing, err := h.feedback.FindByIdempotencyKey(r.Context(), req.IdempotencyKey)
	if err != nil {
		log.Printf("Error checking idempotency: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if existing != nil {
		// Already submitted — return the existing feedback (idempotent behavior)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":  "feedback already submitted",
			"feedback": existing,
		})
		return
	}

	feedback := &models.Feedback{
		NoteID:         noteID,
		Email:          req.Email,
		Text:           req.Text,
		IdempotencyKey: req.IdempotencyKey,
	}

	if err := h.feedback.Create(r.Context(), feedback); err != nil {
		log.Printf("Error creating feedback: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to submit feedback"})
		return
	}

	// Fire Slack notification in a background goroutine (non-blocking)
	go func() {
		message := formatFeedbackMessage(feedback)
		if err := h.notifier.Publish(context.Background(), message); err != nil {
			log.Printf("Error publishing to Slack: %v", err)
		}
	}()

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "feedback submitted successfully",
		"feedback": feedback,
	})
}

func formatFeedbackMessage(f *models.Feedback) string {
	from := f.Email
	if from == "" {
		from = "anonymous"
	}
	msg := fmt.Sprintf("📝 *New Feedback*\nFrom: `%s`\n", from)
	if f.NoteID != nil {
		msg += fmt.Sprintf("Note: `%s`\n", f.NoteID.Hex())
	}
	return msg + "Feedback: " + f.Text
}
