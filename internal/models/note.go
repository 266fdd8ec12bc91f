package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Note is a catalogued document with a denormalized rating aggregate.
// AvgRating and TotalRatings are derived from the ratings collection and are
// only ever written by the rating aggregator (or the admin recompute path).
// Version guards the aggregate against concurrent read-modify-write clobbering.
type Note struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title        string        `bson:"title" json:"title"`
	DriveURL     string        `bson:"drive_url" json:"driveUrl"`
	AvgRating    float64       `bson:"avg_rating" json:"avgRating"`
	TotalRatings int64         `bson:"total_ratings" json:"totalRatings"`
	Version      int64         `bson:"version" json:"-"`
	CreatedAt    time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updated_at" json:"updatedAt"`
}
