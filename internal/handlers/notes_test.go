package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kamati-backend/internal/models"
	"kamati-backend/internal/ratings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// stubSubmitter records the submission it received and plays back a canned
// result, keeping handler tests independent of the aggregator and the store.
type stubSubmitter struct {
	result ratings.Result
	err    error

	called    bool
	gotNoteID bson.ObjectID
	gotUserID string
	gotStars  int
}

func (s *stubSubmitter) Submit(ctx context.Context, noteID bson.ObjectID, userID string, stars int) (ratings.Result, error) {
	s.called = true
	s.gotNoteID = noteID
	s.gotUserID = userID
	s.gotStars = stars
	return s.result, s.err
}

type stubLister struct {
	notes []models.Note
	err   error
}

func (s *stubLister) List(ctx context.Context) ([]models.Note, error) {
	return s.notes, s.err
}

func postRateNote(h *NotesHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/rate-note", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.RateNote(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestRateNoteValidation(t *testing.T) {
	validID := bson.NewObjectID().Hex()

	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty body", `{}`, "noteId and stars are required"},
		{"missing stars", `{"noteId":"` + validID + `"}`, "noteId and stars are required"},
		{"missing noteId", `{"stars":4}`, "noteId and stars are required"},
		{"stars zero", `{"noteId":"` + validID + `","stars":0}`, "stars must be 1-5"},
		{"stars six", `{"noteId":"` + validID + `","stars":6}`, "stars must be 1-5"},
		{"fractional stars", `{"noteId":"` + validID + `","stars":4.5}`, "stars must be 1-5"},
		{"malformed noteId", `{"noteId":"not-a-hex-id","stars":3}`, "invalid noteId"},
		{"invalid json", `{"noteId":`, "invalid request body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			submitter := &stubSubmitter{}
			h := NewNotesHandler(submitter, &stubLister{})

			rec := postRateNote(h, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeBody(t, rec)["error"]; got != tc.wantErr {
				t.Errorf("error = %q, want %q", got, tc.wantErr)
			}
			if submitter.called {
				t.Error("aggregator called despite invalid input")
			}
		})
	}
}

func TestRateNoteCreated(t *testing.T) {
	noteID := bson.NewObjectID()
	note := &models.Note{
		ID:           noteID,
		Title:        "calculus",
		DriveURL:     "https://drive.example/1",
		AvgRating:    4.0,
		TotalRatings: 1,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	submitter := &stubSubmitter{result: ratings.Result{Created: true, Note: note}}
	h := NewNotesHandler(submitter, &stubLister{})

	rec := postRateNote(h, `{"noteId":"`+noteID.Hex()+`","userId":"alice","stars":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["message"] != "Rating saved" {
		t.Errorf("message = %q, want %q", body["message"], "Rating saved")
	}
	respNote, ok := body["note"].(map[string]interface{})
	if !ok {
		t.Fatal("response has no note object")
	}
	if respNote["_id"] != noteID.Hex() {
		t.Errorf("_id = %v, want %s", respNote["_id"], noteID.Hex())
	}
	if respNote["avgRating"] != 4.0 || respNote["totalRatings"] != 1.0 {
		t.Errorf("aggregate = %v/%v, want 4/1", respNote["avgRating"], respNote["totalRatings"])
	}
	if respNote["driveUrl"] != "https://drive.example/1" {
		t.Errorf("driveUrl = %v", respNote["driveUrl"])
	}

	if submitter.gotNoteID != noteID || submitter.gotUserID != "alice" || submitter.gotStars != 4 {
		t.Errorf("aggregator got (%s, %q, %d)", submitter.gotNoteID.Hex(), submitter.gotUserID, submitter.gotStars)
	}
}

func TestRateNoteUpdated(t *testing.T) {
	noteID := bson.NewObjectID()
	note := &models.Note{ID: noteID, AvgRating: 2.0, TotalRatings: 2}
	submitter := &stubSubmitter{result: ratings.Result{Created: false, Note: note}}
	h := NewNotesHandler(submitter, &stubLister{})

	rec := postRateNote(h, `{"noteId":"`+noteID.Hex()+`","userId":"alice","stars":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody(t, rec)["message"]; got != "Rating updated" {
		t.Errorf("message = %q, want %q", got, "Rating updated")
	}
}

func TestRateNoteErrorMapping(t *testing.T) {
	validID := bson.NewObjectID().Hex()

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantErr    string
	}{
		{"not found", ratings.ErrNoteNotFound, http.StatusNotFound, "Note not found"},
		{"conflict", ratings.ErrAlreadyRated, http.StatusConflict, "You have already rated this note"},
		{"storage failure", errors.New("mongo down"), http.StatusInternalServerError, "Server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewNotesHandler(&stubSubmitter{err: tc.err}, &stubLister{})

			rec := postRateNote(h, `{"noteId":"`+validID+`","stars":3}`)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := decodeBody(t, rec)["error"]; got != tc.wantErr {
				t.Errorf("error = %q, want %q", got, tc.wantErr)
			}
		})
	}
}

func TestRateNoteUserIDNormalization(t *testing.T) {
	validID := bson.NewObjectID().Hex()

	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{"string", `"alice"`, "alice"},
		{"number", `12345`, "12345"},
		{"null", `null`, ""},
		{"empty string", `""`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			submitter := &stubSubmitter{result: ratings.Result{Created: true, Note: &models.Note{}}}
			h := NewNotesHandler(submitter, &stubLister{})

			rec := postRateNote(h, `{"noteId":"`+validID+`","userId":`+tc.payload+`,"stars":3}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if submitter.gotUserID != tc.want {
				t.Errorf("userID = %q, want %q", submitter.gotUserID, tc.want)
			}
		})
	}

	t.Run("absent", func(t *testing.T) {
		submitter := &stubSubmitter{result: ratings.Result{Created: true, Note: &models.Note{}}}
		h := NewNotesHandler(submitter, &stubLister{})

		rec := postRateNote(h, `{"noteId":"`+validID+`","stars":3}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if submitter.gotUserID != "" {
			t.Errorf("userID = %q, want empty", submitter.gotUserID)
		}
	})

	t.Run("boolean rejected", func(t *testing.T) {
		h := NewNotesHandler(&stubSubmitter{}, &stubLister{})
		rec := postRateNote(h, `{"noteId":"`+validID+`","userId":true,"stars":3}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestListNotes(t *testing.T) {
	first := models.Note{ID: bson.NewObjectID(), Title: "best", AvgRating: 4.8, TotalRatings: 12}
	second := models.Note{ID: bson.NewObjectID(), Title: "runner-up", AvgRating: 4.8, TotalRatings: 3}
	h := NewNotesHandler(&stubSubmitter{}, &stubLister{notes: []models.Note{first, second}})

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	rec := httptest.NewRecorder()
	h.ListNotes(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	notes, ok := body["notes"].([]interface{})
	if !ok {
		t.Fatal("response has no notes array")
	}
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	// Display order comes straight from the store's sort; the handler must
	// preserve it.
	if notes[0].(map[string]interface{})["title"] != "best" {
		t.Error("list order not preserved")
	}
}

func TestListNotesEmpty(t *testing.T) {
	h := NewNotesHandler(&stubSubmitter{}, &stubLister{notes: nil})

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	rec := httptest.NewRecorder()
	h.ListNotes(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	notes, ok := decodeBody(t, rec)["notes"].([]interface{})
	if !ok {
		t.Fatal("notes must be an empty array, not null")
	}
	if len(notes) != 0 {
		t.Errorf("got %d notes, want 0", len(notes))
	}
}

func TestListNotesStorageError(t *testing.T) {
	h := NewNotesHandler(&stubSubmitter{}, &stubLister{err: errors.New("mongo down")})

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	rec := httptest.NewRecorder()
	h.ListNotes(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Server error" {
		t.Errorf("error = %q, want %q", got, "Server error")
	}
}
