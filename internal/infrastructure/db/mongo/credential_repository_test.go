package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/mediastudio/studio-api/internal/core/domain"
)

func newCredential() *domain.StoredCredential {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.StoredCredential{
		ID:          "new",
		UserID:      "u1",
		Service:     domain.ServiceOpenAI,
		APIKey:      "enc:v1:payload",
		IsEncrypted: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func activeCursor(mt *mtest.T, ids ...string) bson.D {
	batch := make([]bson.D, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, bson.D{{Key: "_id", Value: id}})
	}
	return mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, batch...)
}

func updated(n int) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}

func startedCommands(mt *mtest.T, name string) []bson.Raw {
	var out []bson.Raw
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName == name {
			out = append(out, evt.Command)
		}
	}
	return out
}

func TestCredentialRepository_ReplaceActive(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("swaps the active key", func(mt *mtest.T) {
		repo := &CredentialRepository{coll: mt.Coll}
		mt.AddMockResponses(activeCursor(mt, "old"), updated(1), mtest.CreateSuccessResponse())

		require.NoError(mt, repo.ReplaceActive(context.Background(), newCredential()))

		updates := startedCommands(mt, "update")
		require.Len(mt, updates, 1)
		assert.False(mt, updates[0].Lookup("updates", "0", "u", "$set", "is_active").Boolean())
		assert.Len(mt, startedCommands(mt, "insert"), 1)
	})

	mt.Run("restores the retired key when the insert fails", func(mt *mtest.T) {
		repo := &CredentialRepository{coll: mt.Coll}
		mt.AddMockResponses(
			activeCursor(mt, "old"),
			updated(1),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "Document failed validation"}),
			updated(1),
		)

		err := repo.ReplaceActive(context.Background(), newCredential())
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "insert api key")

		updates := startedCommands(mt, "update")
		require.Len(mt, updates, 2)
		restore := updates[1]
		assert.Equal(mt, "old", restore.Lookup("updates", "0", "q", "_id", "$in", "0").StringValue())
		assert.True(mt, restore.Lookup("updates", "0", "u", "$set", "is_active").Boolean())
		_, err = restore.LookupErr("updates", "0", "u", "$unset", "deactivated_at")
		assert.NoError(mt, err)
		assert.Len(mt, startedCommands(mt, "insert"), 1)
	})

	mt.Run("nothing to restore for a first key", func(mt *mtest.T) {
		repo := &CredentialRepository{coll: mt.Coll}
		mt.AddMockResponses(
			activeCursor(mt),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "Document failed validation"}),
		)

		require.Error(mt, repo.ReplaceActive(context.Background(), newCredential()))
		assert.Empty(mt, startedCommands(mt, "update"))
	})

	mt.Run("retries after losing the race to a concurrent writer", func(mt *mtest.T) {
		repo := &CredentialRepository{coll: mt.Coll}
		mt.AddMockResponses(
			activeCursor(mt, "old"),
			updated(1),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			activeCursor(mt, "rival"),
			updated(1),
			mtest.CreateSuccessResponse(),
		)

		require.NoError(mt, repo.ReplaceActive(context.Background(), newCredential()))

		updates := startedCommands(mt, "update")
		require.Len(mt, updates, 2)
		assert.Equal(mt, "rival", updates[1].Lookup("updates", "0", "q", "_id", "$in", "0").StringValue())
		for _, u := range updates {
			assert.False(mt, u.Lookup("updates", "0", "u", "$set", "is_active").Boolean())
		}
		assert.Len(mt, startedCommands(mt, "insert"), 2)
	})
}
