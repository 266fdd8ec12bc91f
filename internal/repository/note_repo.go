package repository

import (
	"context"
	"time"

	"kamati-backend/internal/database"
	"kamati-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// listSort is the ordering contract for the notes listing: best-rated first,
// ties broken by rating count, then by newest.
var listSort = bson.D{
	{Key: "avg_rating", Value: -1},
	{Key: "total_ratings", Value: -1},
	{Key: "created_at", Value: -1},
}

type NoteRepo struct {
	collection *mongo.Collection
}

func NewNoteRepo() *NoteRepo {
	return &NoteRepo{
		collection: database.GetCollection("notes"),
	}
}

func (r *NoteRepo) FindByID(ctx context.Context, id bson.ObjectID) (*models.Note, error) {
	var note models.Note
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&note)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &note, nil
}

func (r *NoteRepo) List(ctx context.Context) ([]models.Note, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(listSort))
	if err != nil {
		return nil, err
	}
	notes := []models.Note{}
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *NoteRepo) Create(ctx context.Context, note *models.Note) error {
	note.CreatedAt = time.Now()
	note.UpdatedAt = time.Now()
	result, err := r.collection.InsertOne(ctx, note)
	if err != nil {
		return err
	}
	note.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// CompareAndSwapAggregate writes the aggregate fields only if the stored
// version still matches, and bumps the version on success. A false return
// means a concurrent writer got there first and the caller must recompute
// from fresh state.
func (r *NoteRepo) CompareAndSwapAggregate(ctx context.Context, id bson.ObjectID, expectedVersion int64, avg float64, total int64) (bool, error) {
	filter := bson.M{"_id": id, "version": expectedVersion}
	if expectedVersion == 0 {
		// Notes seeded by out-of-band imports may predate the version field;
		// a plain equality match would never hit those documents.
		filter["version"] = bson.M{"$in": bson.A{int64(0), nil}}
	}
	result, err := r.collection.UpdateOne(ctx,
		filter,
		bson.M{
			"$set": bson.M{
				"avg_rating":    avg,
				"total_ratings": total,
				"updated_at":    time.Now(),
			},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

// SetAggregate overwrites the aggregate unconditionally. Used by the admin
// recompute path, which derives the values from the rating rows themselves.
func (r *NoteRepo) SetAggregate(ctx context.Context, id bson.ObjectID, avg float64, total int64) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"avg_rating":    avg,
			"total_ratings": total,
			"updated_at":    time.Now(),
		},
		"$inc": bson.M{"version": 1},
	})
	return err
}

// EnsureIndexes creates necessary indexes for the notes collection
func (r *NoteRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: listSort,
	})
	return err
}
