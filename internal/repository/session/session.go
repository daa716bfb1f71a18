package session

import (
	"context"
	"errors"
	"time"
	"tpa_auth/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("session: not found")

type (
	// SessionRepo stores one audit document per served connection.
	SessionRepo struct {
		collection *mongo.Collection
	}
)

func NewSessionRepo(db *mongo.Database) *SessionRepo {
	return &SessionRepo{
		collection: db.Collection("sessions"),
	}
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	filter := bson.M{
		"_id": id,
	}

	var s model.Session
	err := r.collection.FindOne(ctx, filter).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.collection.InsertOne(ctx, s)
	return err
}

// Finish records how the session ended.
func (r *SessionRepo) Finish(ctx context.Context, id, outcome, phase string, messages int, at time.Time) error {
	filter := bson.M{
		"_id": id,
	}
	update := bson.M{
		"$set": bson.M{
			"outcome":     outcome,
			"phase":       phase,
			"messages":    messages,
			"finished_at": at,
		},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
