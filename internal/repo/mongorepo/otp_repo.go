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

type otpRepo struct {
	coll *mongo.Collection
}

// NewOtpRepo creates a new MongoDB-backed OtpRepo
func NewOtpRepo(db *mongo.Database) repo.OtpRepo {
	return &otpRepo{coll: db.Collection(otpCollection)}
}

// Replace overwrites the single document for (phone, type) with rec, inserting it if none exists.
// The unique (phone, type) index makes the swap atomic. When two first-time upserts race, the loser
// hits a duplicate key and retries as a plain replace.
func (r *otpRepo) Replace(ctx context.Context, rec model.OtpRecord) error {
	filter := bson.M{"phone": rec.Phone, "type": string(rec.Type)}
	opts := options.Replace().SetUpsert(true)

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		_, err = r.coll.ReplaceOne(ctx, filter, toOtpDoc(rec), opts)
		if !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("replace otp: %w", err)
	}
	return nil
}

func (r *otpRepo) FindByCode(ctx context.Context, phone string, otpType model.OtpType, codeHash string) (model.OtpRecord, error) {
	filter := bson.M{"phone": phone, "type": string(otpType), "code_hash": codeHash}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc otpDoc
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.OtpRecord{}, repo.ErrNotFound
		}
		return model.OtpRecord{}, fmt.Errorf("query otp: %w", err)
	}
	rec, err := doc.toModel()
	if err != nil {
		return model.OtpRecord{}, fmt.Errorf("parse otp ID: %w", err)
	}
	return rec, nil
}

// MarkVerified matches on verified=false and an unexpired record so only one concurrent caller
// modifies the document.
func (r *otpRepo) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"otp_id": id.String(), "verified": false, "expires_at": bson.M{"$gte": at.UTC()}},
		bson.M{"$set": bson.M{"verified": true, "verified_at": at.UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("mark otp verified: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *otpRepo) DeleteByPhone(ctx context.Context, phone string, otpType model.OtpType) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"phone": phone, "type": string(otpType)})
	if err != nil {
		return 0, fmt.Errorf("delete otps: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *otpRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": before.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *otpRepo) CountActive(ctx context.Context, phone string, otpType model.OtpType, now time.Time) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"phone":      phone,
		"type":       string(otpType),
		"verified":   false,
		"expires_at": bson.M{"$gte": now.UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("count active otps: %w", err)
	}
	return int(n), nil
}
