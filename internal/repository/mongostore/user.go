package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	now := s.now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("mongostore: inserting user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("mongostore: getting user %s: %w", id, err)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	opts := options.FindOne().SetCollation(emailCollation)
	err := s.users.FindOne(ctx, bson.M{"email": email}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("mongostore: getting user by email: %w", err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, filter repository.UserFilter) ([]model.User, error) {
	q := bson.M{}
	if filter.UserType != "" {
		q["userType"] = filter.UserType
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.users.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: listing users: %w", err)
	}
	defer cur.Close(ctx)

	users := []model.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongostore: decoding users: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = s.now()

	update := bson.M{"$set": bson.M{
		"fullName":     user.FullName,
		"email":        user.Email,
		"passwordHash": user.PasswordHash,
		"userType":     user.UserType,
		"faculty":      user.Faculty,
		"level":        user.Level,
		"indexNumber":  user.IndexNumber,
		"status":       user.Status,
		"profileImage": user.ProfileImage,
		"updatedAt":    user.UpdatedAt,
	}}
	res, err := s.users.UpdateByID(ctx, user.ID, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("mongostore: updating user %s: %w", user.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// DeleteUser removes the account only; ballots are kept.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongostore: deleting user %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
