package session

import (
	"context"
	"testing"
	"time"
	"tpa_auth/internal/model"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestSessionRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		repo := NewSessionRepo(mt.DB)
		err := repo.Create(context.Background(), &model.Session{
			ID:        "3c1d",
			Peer:      "127.0.0.1:5000",
			Algorithm: "AES",
			Outcome:   model.OutcomeOpen,
			StartedAt: time.Now(),
		})
		require.NoError(mt, err)
		require.Equal(mt, "insert", mt.GetStartedEvent().CommandName)
	})

	mt.Run("finish", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})

		repo := NewSessionRepo(mt.DB)
		err := repo.Finish(context.Background(), "3c1d", model.OutcomeCompleted, "Closed", 2, time.Now())
		require.NoError(mt, err)
		require.Equal(mt, "update", mt.GetStartedEvent().CommandName)
	})

	mt.Run("finish unknown", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}})

		repo := NewSessionRepo(mt.DB)
		err := repo.Finish(context.Background(), "missing", model.OutcomeCompleted, "Closed", 0, time.Now())
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("get", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.sessions", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "3c1d"},
			{Key: "peer", Value: "127.0.0.1:5000"},
			{Key: "outcome", Value: model.OutcomeCompleted},
			{Key: "messages", Value: 2},
		}))

		repo := NewSessionRepo(mt.DB)
		s, err := repo.GetByID(context.Background(), "3c1d")
		require.NoError(mt, err)
		require.NotNil(mt, s)
		require.Equal(mt, "127.0.0.1:5000", s.Peer)
		require.Equal(mt, 2, s.Messages)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.sessions", mtest.FirstBatch))

		repo := NewSessionRepo(mt.DB)
		s, err := repo.GetByID(context.Background(), "missing")
		require.NoError(mt, err)
		require.Nil(mt, s)
	})
}
