package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const distributionStatusID = "reward_distribution"

// AcquireDistributionLease takes the named lease if it is free, expired or
// already held by holder. A live lease of another holder makes the upsert
// collide on _id, which is reported as LeaseHeldError.
func (db *Database) AcquireDistributionLease(
	ctx context.Context, name, holder string, now time.Time, ttl time.Duration,
) error {
	filter := bson.M{
		"_id": name,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$lte": now}},
			bson.M{"holder": holder},
		},
	}
	update := bson.M{"$set": bson.M{
		"holder":      holder,
		"acquired_at": now,
		"expires_at":  now.Add(ttl),
	}}

	_, err := db.collection(model.DistributionLeaseCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}

	heldErr := &LeaseHeldError{Name: name}
	var lease model.DistributionLease
	if findErr := db.collection(model.DistributionLeaseCollection).
		FindOne(ctx, bson.M{"_id": name}).Decode(&lease); findErr == nil {
		heldErr.Holder = lease.Holder
	}

	return heldErr
}

func (db *Database) ReleaseDistributionLease(ctx context.Context, name, holder string) error {
	_, err := db.collection(model.DistributionLeaseCollection).
		DeleteOne(ctx, bson.M{"_id": name, "holder": holder})
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", name, err)
	}

	return nil
}

// GetDistributionStatus returns an empty status before the first run
func (db *Database) GetDistributionStatus(ctx context.Context) (*model.DistributionStatus, error) {
	var status model.DistributionStatus
	err := db.collection(model.DistributionStatusCollection).
		FindOne(ctx, bson.M{"_id": distributionStatusID}).
		Decode(&status)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &model.DistributionStatus{}, nil
		}
		return nil, err
	}

	return &status, nil
}

func (db *Database) RecordDistributionBatch(ctx context.Context, batch *model.BatchSummaryDocument) error {
	coll := db.collection(model.DistributionStatusCollection)

	_, err := coll.UpdateOne(
		ctx,
		bson.M{"_id": distributionStatusID},
		bson.M{
			"$inc": bson.M{
				"total_distributed": batch.TotalTickets,
				"total_errors":      int64(batch.Failed),
			},
			"$max": bson.M{"last_run": batch.StartedAt},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to update distribution totals: %w", err)
	}

	// an older batch finishing late never replaces a newer summary
	_, err = coll.UpdateOne(
		ctx,
		bson.M{
			"_id": distributionStatusID,
			"$or": bson.A{
				bson.M{"last_batch": bson.M{"$exists": false}},
				bson.M{"last_batch.started_at": bson.M{"$lte": batch.StartedAt}},
			},
		},
		bson.M{"$set": bson.M{"last_batch": batch}},
	)
	if err != nil {
		return fmt.Errorf("failed to update last batch summary: %w", err)
	}

	return nil
}

// CountStakesByUserSince returns users with more than threshold positions
// staked at or after since, highest count first.
func (db *Database) CountStakesByUserSince(
	ctx context.Context, since time.Time, threshold int64,
) ([]model.UserStakeCount, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"staked_at": bson.M{"$gte": since}}},
		bson.M{"$group": bson.M{
			"_id":   "$user_id",
			"count": bson.M{"$sum": 1},
		}},
		bson.M{"$match": bson.M{"count": bson.M{"$gt": threshold}}},
		bson.M{"$sort": bson.D{{Key: "count", Value: -1}}},
	}

	var result []model.UserStakeCount
	if err := db.aggregateAll(ctx, model.StakingPositionsCollection, pipeline, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// CountStakesByContractSince counts stakes per contract. Contracts without
// stakes in the window are not returned.
func (db *Database) CountStakesByContractSince(ctx context.Context, since time.Time) ([]model.ContractStakeCount, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"staked_at": bson.M{"$gte": since}}},
		bson.M{"$group": bson.M{
			"_id":   "$contract_id",
			"count": bson.M{"$sum": 1},
		}},
		bson.M{"$sort": bson.D{{Key: "_id", Value: 1}}},
	}

	var result []model.ContractStakeCount
	if err := db.aggregateAll(ctx, model.StakingPositionsCollection, pipeline, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (db *Database) aggregateAll(ctx context.Context, collection string, pipeline bson.A, out any) error {
	cursor, err := db.collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return cursor.All(ctx, out)
}
