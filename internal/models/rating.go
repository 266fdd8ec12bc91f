package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Rating is one star score (1-5) for one note. UserID is nil for anonymous
// ratings; identified ratings are unique per (note_id, user_id), enforced by
// a partial index so anonymous rows are exempt.
type Rating struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	NoteID    bson.ObjectID `bson:"note_id" json:"noteId"`
	UserID    *string       `bson:"user_id" json:"userId"`
	Stars     int           `bson:"stars" json:"stars"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updatedAt"`
}
