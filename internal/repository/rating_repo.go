package repository

import (
	"context"
	"fmt"
	"time"

	"kamati-backend/internal/database"
	"kamati-backend/internal/models"
	"kamati-backend/internal/ratings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type RatingRepo struct {
	collection *mongo.Collection
}

func NewRatingRepo() *RatingRepo {
	return &RatingRepo{
		collection: database.GetCollection("ratings"),
	}
}

func (r *RatingRepo) FindByNoteAndUser(ctx context.Context, noteID bson.ObjectID, userID string) (*models.Rating, error) {
	var rating models.Rating
	err := r.collection.FindOne(ctx, bson.M{"note_id": noteID, "user_id": userID}).Decode(&rating)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &rating, nil
}

func (r *RatingRepo) Insert(ctx context.Context, rating *models.Rating) error {
	rating.CreatedAt = time.Now()
	rating.UpdatedAt = time.Now()
	result, err := r.collection.InsertOne(ctx, rating)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", ratings.ErrAlreadyRated, err)
		}
		return err
	}
	rating.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *RatingRepo) UpdateStars(ctx context.Context, id bson.ObjectID, stars int) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"stars":      stars,
			"updated_at": time.Now(),
		},
	})
	return err
}

// AggregateByNote derives (average, count) straight from the rating rows.
// This is the source of truth the note's denormalized aggregate caches.
func (r *RatingRepo) AggregateByNote(ctx context.Context, noteID bson.ObjectID) (float64, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"note_id": noteID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"avg":   bson.M{"$avg": "$stars"},
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	var results []struct {
		Avg   float64 `bson:"avg"`
		Count int64   `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, 0, err
	}
	if len(results) == 0 {
		return 0, 0, nil
	}
	return results[0].Avg, results[0].Count, nil
}

// EnsureIndexes creates necessary indexes for the ratings collection.
// The compound index is a partial unique constraint: it applies only to rows
// whose user_id is a string, so anonymous ratings (user_id null) can repeat
// freely while each identified user gets at most one rating per note.
func (r *RatingRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "note_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "user_id", Value: bson.D{{Key: "$type", Value: "string"}}},
				}),
		},
		{
			Keys: bson.D{{Key: "note_id", Value: 1}},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
