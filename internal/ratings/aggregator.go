// Package ratings implements the rating aggregation core: deciding whether a
// submission is a fresh vote or an amendment, and keeping a note's
// denormalized average/count consistent with the underlying rating rows.
package ratings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"kamati-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrNoteNotFound means the noteId does not resolve to a stored note.
	ErrNoteNotFound = errors.New("note not found")
	// ErrInvalidStars means stars is outside the 1-5 range.
	ErrInvalidStars = errors.New("stars must be between 1 and 5")
	// ErrAlreadyRated means the unique (note, user) constraint rejected an
	// insert — a concurrent submission for the same identified user won the
	// race. Callers should re-fetch and retry as an amendment.
	ErrAlreadyRated = errors.New("already rated")
)

// maxAggregateRetries bounds the CAS retry loop on the note aggregate.
// Contention per note is low (one SPA click per submission), so a couple of
// retries is plenty before giving up as a storage error.
const maxAggregateRetries = 3

// NoteStore is the note-side persistence the aggregator needs.
// FindByID returns (nil, nil) when no note matches.
type NoteStore interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Note, error)
	// CompareAndSwapAggregate writes the aggregate fields only if the stored
	// version still equals expectedVersion, and reports whether it matched.
	CompareAndSwapAggregate(ctx context.Context, id bson.ObjectID, expectedVersion int64, avg float64, total int64) (bool, error)
}

// RatingStore is the rating-side persistence the aggregator needs.
// FindByNoteAndUser returns (nil, nil) when no rating matches. Insert must
// return ErrAlreadyRated (possibly wrapped) when the unique constraint on
// (note_id, user_id) rejects the row.
type RatingStore interface {
	FindByNoteAndUser(ctx context.Context, noteID bson.ObjectID, userID string) (*models.Rating, error)
	Insert(ctx context.Context, rating *models.Rating) error
	UpdateStars(ctx context.Context, id bson.ObjectID, stars int) error
}

// Result is the outcome of a submission. Created distinguishes a fresh vote
// from an amendment; Note carries the refreshed aggregate so callers can
// update their display without re-fetching.
type Result struct {
	Created bool
	Note    *models.Note
}

type Aggregator struct {
	notes   NoteStore
	ratings RatingStore
}

func NewAggregator(notes NoteStore, ratings RatingStore) *Aggregator {
	return &Aggregator{notes: notes, ratings: ratings}
}

// Submit records one star score for a note. An empty userID is an anonymous
// vote and always inserts; a non-empty userID amends its previous vote on the
// same note if one exists. The note's avg/total is never directly settable by
// callers — this is the only mutation path.
func (a *Aggregator) Submit(ctx context.Context, noteID bson.ObjectID, userID string, stars int) (Result, error) {
	if stars < 1 || stars > 5 {
		return Result{}, ErrInvalidStars
	}

	note, err := a.notes.FindByID(ctx, noteID)
	if err != nil {
		return Result{}, fmt.Errorf("load note: %w", err)
	}
	if note == nil {
		return Result{}, ErrNoteNotFound
	}

	var existing *models.Rating
	if userID != "" {
		existing, err = a.ratings.FindByNoteAndUser(ctx, noteID, userID)
		if err != nil {
			return Result{}, fmt.Errorf("look up existing rating: %w", err)
		}
	}

	if existing != nil {
		oldStars := existing.Stars
		if err := a.ratings.UpdateStars(ctx, existing.ID, stars); err != nil {
			return Result{}, fmt.Errorf("update rating: %w", err)
		}
		note, err = a.applyAggregate(ctx, note, func(n *models.Note) (float64, int64) {
			if n.TotalRatings > 0 {
				avg := (n.AvgRating*float64(n.TotalRatings) - float64(oldStars) + float64(stars)) / float64(n.TotalRatings)
				return Round2(avg), n.TotalRatings
			}
			// Inconsistent state: a rating exists but the count is zero.
			// Fall back to the new score rather than dividing by zero.
			return float64(stars), n.TotalRatings
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Created: false, Note: note}, nil
	}

	rating := &models.Rating{NoteID: noteID, Stars: stars}
	if userID != "" {
		rating.UserID = &userID
	}
	if err := a.ratings.Insert(ctx, rating); err != nil {
		if errors.Is(err, ErrAlreadyRated) {
			// Lost the insert race against a concurrent submission from the
			// same user. Surface the conflict instead of silently converting
			// to an amendment; the caller retries with fresh state.
			return Result{}, ErrAlreadyRated
		}
		return Result{}, fmt.Errorf("insert rating: %w", err)
	}
	note, err = a.applyAggregate(ctx, note, func(n *models.Note) (float64, int64) {
		total := n.TotalRatings + 1
		avg := (n.AvgRating*float64(n.TotalRatings) + float64(stars)) / float64(total)
		return Round2(avg), total
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Created: true, Note: note}, nil
}

// applyAggregate runs a compare-and-swap loop over the note's aggregate:
// compute the next (avg, total) from the observed note, attempt the versioned
// write, and on a version mismatch re-read and recompute. This is what keeps
// two submissions for the same note from different users from clobbering each
// other's arithmetic.
func (a *Aggregator) applyAggregate(ctx context.Context, note *models.Note, next func(*models.Note) (float64, int64)) (*models.Note, error) {
	for attempt := 0; ; attempt++ {
		avg, total := next(note)
		ok, err := a.notes.CompareAndSwapAggregate(ctx, note.ID, note.Version, avg, total)
		if err != nil {
			return nil, fmt.Errorf("write note aggregate: %w", err)
		}
		if ok {
			note.AvgRating = avg
			note.TotalRatings = total
			note.Version++
			note.UpdatedAt = time.Now()
			return note, nil
		}
		if attempt+1 >= maxAggregateRetries {
			return nil, fmt.Errorf("note %s: aggregate version conflict persisted after %d attempts", note.ID.Hex(), attempt+1)
		}
		fresh, err := a.notes.FindByID(ctx, note.ID)
		if err != nil {
			return nil, fmt.Errorf("reload note: %w", err)
		}
		if fresh == nil {
			return nil, ErrNoteNotFound
		}
		note = fresh
	}
}

// Round2 rounds to 2 decimal places, the precision the aggregate is stored at.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
