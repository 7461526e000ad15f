package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mediastudio/studio-api/internal/core/domain"
)

const collectionSessions = "sessions"

// SessionRepository implements ports.SessionRepository using MongoDB.
type SessionRepository struct {
	coll *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{coll: db.Collection(collectionSessions)}
}

type mongoSession struct {
	ID            string     `bson:"_id"`
	TokenHash     string     `bson:"token_hash"`
	UserID        string     `bson:"user_id"`
	CreatedAt     time.Time  `bson:"created_at"`
	ExpiresAt     time.Time  `bson:"expires_at"`
	LastSeenAt    time.Time  `bson:"last_seen_at"`
	InvalidatedAt *time.Time `bson:"invalidated_at,omitempty"`
	UserAgent     string     `bson:"user_agent,omitempty"`
	IP            string     `bson:"ip,omitempty"`
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoSession{
		ID:         s.ID,
		TokenHash:  s.TokenHash,
		UserID:     s.UserID,
		CreatedAt:  s.CreatedAt.UTC(),
		ExpiresAt:  s.ExpiresAt.UTC(),
		LastSeenAt: s.LastSeenAt.UTC(),
		UserAgent:  s.UserAgent,
		IP:         s.IP,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ms mongoSession
	if err := r.coll.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&ms); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &domain.Session{
		ID:            ms.ID,
		TokenHash:     ms.TokenHash,
		UserID:        ms.UserID,
		CreatedAt:     ms.CreatedAt.UTC(),
		ExpiresAt:     ms.ExpiresAt.UTC(),
		LastSeenAt:    ms.LastSeenAt.UTC(),
		InvalidatedAt: ms.InvalidatedAt,
		UserAgent:     ms.UserAgent,
		IP:            ms.IP,
	}, nil
}

func (r *SessionRepository) Invalidate(ctx context.Context, tokenHash string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"token_hash": tokenHash, "invalidated_at": bson.M{"$exists": false}}
	if _, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"invalidated_at": at.UTC()}}); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

func (r *SessionRepository) InvalidateByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"user_id": userID, "invalidated_at": bson.M{"$exists": false}}
	if exceptID != "" {
		filter["_id"] = bson.M{"$ne": exceptID}
	}
	res, err := r.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"invalidated_at": at.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("invalidate user sessions: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// never move last_seen_at backwards under concurrent touches
	filter := bson.M{"_id": id, "last_seen_at": bson.M{"$lt": at.UTC()}}
	if _, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"last_seen_at": at.UTC()}}); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now, invalidatedBefore time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"expires_at": bson.M{"$lte": now.UTC()}},
		bson.M{"invalidated_at": bson.M{"$lt": invalidatedBefore.UTC()}},
	}}
	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the token lookup, per-user and expiry indexes.
func (r *SessionRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
