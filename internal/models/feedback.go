package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Feedback is a free-form message from a visitor, optionally tied to a note.
// There are no user accounts, so Email is whatever the visitor typed in.
type Feedback struct {
	ID             bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	NoteID         *bson.ObjectID `bson:"note_id,omitempty" json:"noteId,omitempty"`
	Email          string         `bson:"email,omitempty" json:"email,omitempty"`
	Text           string         `bson:"text" json:"text"`
	IdempotencyKey string         `bson:"idempotency_key" json:"idempotency_key"`
	CreatedAt      time.Time      `bson:"created_at" json:"createdAt"`
}
