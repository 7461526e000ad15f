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
	collectionUsers      = "users"
	collectionSetupState = "setup_state"
	initialAdminMarkerID = "initial_admin"
)

// UserRepository implements ports.UserRepository using MongoDB.
type UserRepository struct {
	coll  *mongo.Collection
	setup *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		coll:  db.Collection(collectionUsers),
		setup: db.Collection(collectionSetupState),
	}
}

type mongoUser struct {
	ID           string     `bson:"_id"`
	Email        string     `bson:"email"`
	Name         string     `bson:"name,omitempty"`
	PasswordHash string     `bson:"password_hash"`
	Role         string     `bson:"role"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

type setupMarker struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
}

func toMongoUser(u *domain.User) mongoUser {
	return mongoUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func (mu mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:           mu.ID,
		Email:        mu.Email,
		Name:         mu.Name,
		PasswordHash: mu.PasswordHash,
		Role:         mu.Role,
		LastLoginAt:  mu.LastLoginAt,
		CreatedAt:    mu.CreatedAt.UTC(),
		UpdatedAt:    mu.UpdatedAt.UTC(),
	}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toMongoUser(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// CreateInitialAdmin claims the setup marker before inserting. The marker has
// a fixed _id so only one caller can ever insert it; it is released again if
// the user insert fails.
func (r *UserRepository) CreateInitialAdmin(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	marker := setupMarker{ID: initialAdminMarkerID, UserID: user.ID, CreatedAt: time.Now().UTC()}
	if _, err := r.setup.InsertOne(ctx, marker); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrSetupCompleted
		}
		return nil, fmt.Errorf("claim setup: %w", err)
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err == nil && n > 0 {
		err = domain.ErrSetupCompleted
	}
	if err == nil {
		_, err = r.coll.InsertOne(ctx, toMongoUser(user))
	}
	if err != nil {
		// keep the marker when users already exist so setup stays closed
		if !errors.Is(err, domain.ErrSetupCompleted) {
			_, _ = r.setup.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": initialAdminMarkerID})
		}
		if errors.Is(err, domain.ErrSetupCompleted) || mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrSetupCompleted
		}
		return nil, fmt.Errorf("insert initial admin: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, bson.M{"last_login_at": at.UTC()})
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.update(ctx, id, bson.M{"password_hash": hash, "updated_at": time.Now().UTC()})
}

func (r *UserRepository) update(ctx context.Context, id string, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureIndexes creates the unique email index.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
