package mongorepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shipway/server/internal/model"
	"github.com/shipway/server/internal/repo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userRepo struct {
	coll *mongo.Collection
}

// NewUserRepo creates a new MongoDB-backed UserRepo
func NewUserRepo(db *mongo.Database) repo.UserRepo {
	return &userRepo{coll: db.Collection(usersCollection)}
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *userRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *userRepo) ExistsByPhoneOrEmail(ctx context.Context, phone, email string) (bool, error) {
	var or bson.A
	if phone != "" {
		or = append(or, bson.M{"phone": phone})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return false, nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"$or": or}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to query user existence: %w", err)
	}
	return n > 0, nil
}

func (r *userRepo) Create(ctx context.Context, u model.User) error {
	if _, err := r.coll.InsertOne(ctx, toUserDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repo.ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update applies patch with a single FindOneAndUpdate and returns the document after the update.
func (r *userRepo) Update(ctx context.Context, id uuid.UUID, patch model.UserPatch, updatedAt time.Time) (model.User, error) {
	set := bson.M{"updated_at": updatedAt.UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Phone != nil {
		set["phone"] = *patch.Phone
	}
	if patch.Role != nil {
		set["role"] = string(*patch.Role)
	}
	if patch.PasswordHash != nil {
		set["password_hash"] = *patch.PasswordHash
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, opts)
	var doc userDoc
	if err := res.Decode(&doc); err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return model.User{}, repo.ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return model.User{}, repo.ErrDuplicate
		}
		return model.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return doc.toModel()
}

func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *userRepo) List(ctx context.Context, role *model.Role, offset, limit int) ([]model.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, roleFilter(role), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cur.Close(ctx)

	users := make([]model.User, 0, limit)
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		u, err := doc.toModel()
		if err != nil {
			return nil, fmt.Errorf("failed to parse user ID: %w", err)
		}
		users = append(users, u)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (r *userRepo) Count(ctx context.Context, role *model.Role) (int, error) {
	n, err := r.coll.CountDocuments(ctx, roleFilter(role))
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return int(n), nil
}

func (r *userRepo) findOne(ctx context.Context, filter bson.M) (model.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, repo.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	u, err := doc.toModel()
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	return u, nil
}

func roleFilter(role *model.Role) bson.M {
	if role == nil {
		return bson.M{}
	}
	return bson.M{"role": string(*role)}
}
