// Package mongorepo provides MongoDB-backed UserRepo and OtpRepo implementations.
package mongorepo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the unique user indexes, the one-per-(phone, type) OTP index and the TTL index.
// The TTL index lets the server drop expired OTPs even when the sweeper is not running.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_uniq")},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_phone_uniq")},
		{Keys: bson.D{{Key: "role", Value: 1}}, Options: options.Index().SetName("users_role_idx")},
		{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("users_created_at_idx")},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = db.Collection(otpCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("otps_phone_type_uniq"),
		},
		{Keys: bson.D{{Key: "otp_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("otps_otp_id_uniq")},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("otps_expires_at_ttl"),
		},
	})
	if err != nil {
		return fmt.Errorf("create otp indexes: %w", err)
	}
	return nil
}
