package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) StakePosition(ctx context.Context, position *model.StakingPosition) error {
	return db.withTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		_, err := db.collection(model.StakingPositionsCollection).InsertOne(sessCtx, position)
		if err != nil {
			return asDuplicateKeyError(err, position.NFT.ID(), "position already exists or nft is already staked")
		}

		res, err := db.collection(model.StakingContractsCollection).
			UpdateOne(sessCtx, bson.M{"_id": position.ContractID}, incTotalStaked(1))
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return &NotFoundError{
				Key:     position.ContractID,
				Message: "staking contract not found",
			}
		}

		return nil
	})
}

func (db *Database) UnstakePosition(ctx context.Context, position *model.StakingPosition) error {
	filter := bson.M{
		"_id":    position.ID,
		"status": types.PositionStatusActive.String(),
	}
	set := bson.M{
		"status":             position.Status.String(),
		"actual_unstaked_at": position.ActualUnstakedAt,
		"unstake_proof":      position.UnstakeProof,
	}
	if position.EarlyUnstakePenalty != nil {
		set["early_unstake_penalty"] = position.EarlyUnstakePenalty
	}

	return db.withTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		res, err := db.collection(model.StakingPositionsCollection).
			UpdateOne(sessCtx, filter, bson.M{"$set": set})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return &NotFoundError{
				Key:     position.ID,
				Message: "active staking position not found",
			}
		}

		_, err = db.collection(model.StakingContractsCollection).
			UpdateOne(sessCtx, bson.M{"_id": position.ContractID}, incTotalStaked(-1))
		return err
	})
}

func (db *Database) GetStakingPosition(ctx context.Context, positionID string) (*model.StakingPosition, error) {
	res := db.collection(model.StakingPositionsCollection).
		FindOne(ctx, bson.M{"_id": positionID})

	var position model.StakingPosition
	if err := res.Decode(&position); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     positionID,
				Message: "staking position not found",
			}
		}
		return nil, err
	}

	return &position, nil
}

func (db *Database) GetStakingPositionsByIDs(ctx context.Context, positionIDs []string) ([]model.StakingPosition, error) {
	filter := bson.M{"_id": bson.M{"$in": positionIDs}}
	return db.findPositions(ctx, filter, options.Find())
}

func (db *Database) GetStakingPositionsByUser(ctx context.Context, userID string) ([]model.StakingPosition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "staked_at", Value: -1}})
	return db.findPositions(ctx, bson.M{"user_id": userID}, opts)
}

func (db *Database) FindPositionsDueForReward(
	ctx context.Context, now, cutoff time.Time, limit int64,
) ([]model.StakingPosition, error) {
	filter := bson.M{
		"status":     types.PositionStatusActive.String(),
		"unstake_at": bson.M{"$gt": now},
		"$or": bson.A{
			bson.M{"last_reward_distribution": bson.M{"$lte": cutoff}},
			bson.M{
				"last_reward_distribution": nil,
				"staked_at":                bson.M{"$lte": cutoff},
			},
		},
	}

	// never rewarded positions (null anchor) sort first
	opts := options.Find().SetSort(bson.D{
		{Key: "last_reward_distribution", Value: 1},
		{Key: "staked_at", Value: 1},
	})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	return db.findPositions(ctx, filter, opts)
}

func (db *Database) ClaimPositionForProcessing(
	ctx context.Context, positionID, owner string, now time.Time, ttl time.Duration,
) (*model.StakingPosition, error) {
	filter := bson.M{
		"_id": positionID,
		"$or": bson.A{
			bson.M{"processing_lock": nil},
			bson.M{"processing_lock.expires_at": bson.M{"$lte": now}},
			bson.M{"processing_lock.owner": owner},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"processing_lock": model.ProcessingLock{
				Owner:     owner,
				ExpiresAt: now.Add(ttl),
			},
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	res := db.collection(model.StakingPositionsCollection).
		FindOneAndUpdate(ctx, filter, update, opts)

	var position model.StakingPosition
	if err := res.Decode(&position); err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		// distinguish a missing position from a locked one
		if _, getErr := db.GetStakingPosition(ctx, positionID); getErr != nil {
			return nil, getErr
		}
		return nil, &types.PositionLockedError{PositionID: positionID}
	}

	return &position, nil
}

func (db *Database) ReleasePositionLock(ctx context.Context, positionID, owner string) error {
	filter := bson.M{
		"_id":                   positionID,
		"processing_lock.owner": owner,
	}
	update := bson.M{"$unset": bson.M{"processing_lock": ""}}

	_, err := db.collection(model.StakingPositionsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to release lock on position %s: %w", positionID, err)
	}

	return nil
}

func (db *Database) UpdatePositionVerification(
	ctx context.Context, positionID string, result *model.VerificationResult,
) error {
	res, err := db.collection(model.StakingPositionsCollection).UpdateOne(
		ctx,
		bson.M{"_id": positionID},
		bson.M{"$set": bson.M{"verification": result}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &NotFoundError{
			Key:     positionID,
			Message: "staking position not found",
		}
	}

	return nil
}

func (db *Database) FindPositionsForVerification(
	ctx context.Context, checkedBefore time.Time, limit int64,
) ([]model.StakingPosition, error) {
	filter := bson.M{
		"status": types.PositionStatusActive.String(),
		"$or": bson.A{
			bson.M{"verification": nil},
			bson.M{"verification.checked_at": bson.M{"$lt": checkedBefore}},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "verification.checked_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	return db.findPositions(ctx, filter, opts)
}

func (db *Database) findPositions(
	ctx context.Context, filter bson.M, opts *options.FindOptions,
) ([]model.StakingPosition, error) {
	cursor, err := db.collection(model.StakingPositionsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var positions []model.StakingPosition
	if err := cursor.All(ctx, &positions); err != nil {
		return nil, err
	}

	return positions, nil
}
