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

const (
	collectionCredentials = "api_keys"
	replaceAttempts       = 3
)

// CredentialRepository implements ports.CredentialRepository using MongoDB.
// A partial unique index guarantees at most one active key per user and
// service.
type CredentialRepository struct {
	coll *mongo.Collection
}

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{coll: db.Collection(collectionCredentials)}
}

type mongoCredential struct {
	ID            string     `bson:"_id"`
	UserID        string     `bson:"user_id"`
	Service       string     `bson:"service"`
	APIKey        string     `bson:"api_key"`
	IsEncrypted   bool       `bson:"is_encrypted"`
	IsActive      bool       `bson:"is_active"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
	DeactivatedAt *time.Time `bson:"deactivated_at,omitempty"`
}

func (mc mongoCredential) toDomain() *domain.StoredCredential {
	return &domain.StoredCredential{
		ID:            mc.ID,
		UserID:        mc.UserID,
		Service:       mc.Service,
		APIKey:        mc.APIKey,
		IsEncrypted:   mc.IsEncrypted,
		IsActive:      mc.IsActive,
		CreatedAt:     mc.CreatedAt.UTC(),
		UpdatedAt:     mc.UpdatedAt.UTC(),
		DeactivatedAt: mc.DeactivatedAt,
	}
}

func activeFilter(userID, service string) bson.M {
	return bson.M{"user_id": userID, "service": service, "is_active": true}
}

func (r *CredentialRepository) FindActive(ctx context.Context, userID, service string) (*domain.StoredCredential, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mc mongoCredential
	if err := r.coll.FindOne(ctx, activeFilter(userID, service)).Decode(&mc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find api key: %w", err)
	}
	return mc.toDomain(), nil
}

func (r *CredentialRepository) ExistsActive(ctx context.Context, userID, service string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, activeFilter(userID, service), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count api keys: %w", err)
	}
	return n > 0, nil
}

func (r *CredentialRepository) ListActive(ctx context.Context, userID string) ([]*domain.StoredCredential, error) {
	return r.find(ctx, bson.M{"user_id": userID, "is_active": true},
		options.Find().SetSort(bson.D{{Key: "service", Value: 1}}))
}

func (r *CredentialRepository) ListUnencrypted(ctx context.Context, limit int64) ([]*domain.StoredCredential, error) {
	return r.find(ctx, bson.M{"is_encrypted": bson.M{"$ne": true}},
		options.Find().SetLimit(limit).SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (r *CredentialRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.StoredCredential, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	var docs []mongoCredential
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode api keys: %w", err)
	}
	out := make([]*domain.StoredCredential, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// ReplaceActive retires the current key and inserts c. A concurrent writer can
// slip a key in between; the unique index rejects the insert and the swap is
// retried. Any other insert failure re-activates the retired key so the user
// is never left without one.
func (r *CredentialRepository) ReplaceActive(ctx context.Context, c *domain.StoredCredential) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoCredential{
		ID:          c.ID,
		UserID:      c.UserID,
		Service:     c.Service,
		APIKey:      c.APIKey,
		IsEncrypted: c.IsEncrypted,
		IsActive:    true,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}

	var err error
	for i := 0; i < replaceAttempts; i++ {
		var retired []string
		if retired, err = r.activeIDs(ctx, c.UserID, c.Service); err != nil {
			return err
		}
		if len(retired) > 0 {
			if _, err = r.deactivate(ctx, bson.M{"_id": bson.M{"$in": retired}, "is_active": true}, c.CreatedAt); err != nil {
				return err
			}
		}

		_, err = r.coll.InsertOne(ctx, doc)
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			if rerr := r.reactivate(ctx, retired, c.CreatedAt); rerr != nil {
				return fmt.Errorf("insert api key: %w", errors.Join(err, rerr))
			}
			break
		}
	}
	return fmt.Errorf("insert api key: %w", err)
}

func (r *CredentialRepository) activeIDs(ctx context.Context, userID, service string) ([]string, error) {
	cur, err := r.coll.Find(ctx, activeFilter(userID, service), options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("find active api keys: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode active api keys: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// reactivate undoes the deactivation of ids. It runs on its own deadline so a
// cancelled request still gets its key back.
func (r *CredentialRepository) reactivate(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
	defer cancel()

	_, err := r.coll.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "is_active": false}, bson.M{
		"$set":   bson.M{"is_active": true, "updated_at": at.UTC()},
		"$unset": bson.M{"deactivated_at": ""},
	})
	if err != nil {
		return fmt.Errorf("restore api key: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Deactivate(ctx context.Context, userID, service string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.deactivate(ctx, activeFilter(userID, service), at)
	return n > 0, err
}

func (r *CredentialRepository) deactivate(ctx context.Context, filter bson.M, at time.Time) (int64, error) {
	at = at.UTC()
	res, err := r.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"is_active":      false,
		"deactivated_at": at,
		"updated_at":     at,
	}})
	if err != nil {
		return 0, fmt.Errorf("deactivate api key: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *CredentialRepository) MarkEncrypted(ctx context.Context, id, envelope string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"api_key":      envelope,
		"is_encrypted": true,
		"updated_at":   at.UTC(),
	}})
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// EnsureIndexes creates the partial unique index on active keys.
func (r *CredentialRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "service", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_active": true}).
				SetName("uniq_active_key"),
		},
		{Keys: bson.D{{Key: "is_encrypted", Value: 1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
