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

func (db *Database) SaveStakingContract(ctx context.Context, contract *model.StakingContract) error {
	now := time.Now().UTC()
	filter := bson.M{"_id": contract.ID}
	update := bson.M{
		"$set": bson.M{
			"name":             contract.Name,
			"chain":            contract.Chain,
			"contract_address": contract.ContractAddress,
			"reward_structure": contract.RewardStructure,
			"is_active":        contract.IsActive,
			"is_validated":     contract.IsValidated,
			"updated_at":       now,
		},
		"$setOnInsert": bson.M{
			"total_staked":              int64(0),
			"total_rewards_distributed": int64(0),
			"created_at":                now,
		},
	}

	_, err := db.collection(model.StakingContractsCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return asDuplicateKeyError(err, contract.ContractAddress, "staking contract address is already registered")
}

func (db *Database) GetStakingContract(ctx context.Context, contractID string) (*model.StakingContract, error) {
	res := db.collection(model.StakingContractsCollection).
		FindOne(ctx, bson.M{"_id": contractID})

	var contract model.StakingContract
	if err := res.Decode(&contract); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     contractID,
				Message: "staking contract not found",
			}
		}
		return nil, err
	}

	return &contract, nil
}

func (db *Database) GetStakingContracts(ctx context.Context) ([]model.StakingContract, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := db.collection(model.StakingContractsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var contracts []model.StakingContract
	if err := cursor.All(ctx, &contracts); err != nil {
		return nil, err
	}

	return contracts, nil
}

func (db *Database) SetStakingContractActive(ctx context.Context, contractID string, active bool) error {
	return db.updateContract(ctx, contractID, bson.M{
		"$set": bson.M{"is_active": active, "updated_at": time.Now().UTC()},
	})
}

func (db *Database) SetStakingContractValidated(ctx context.Context, contractID string, validated bool) error {
	return db.updateContract(ctx, contractID, bson.M{
		"$set": bson.M{"is_validated": validated, "updated_at": time.Now().UTC()},
	})
}

func (db *Database) IncrementContractTotalStaked(ctx context.Context, contractID string, delta int64) error {
	return db.updateContract(ctx, contractID, incTotalStaked(delta))
}

func (db *Database) IncrementContractRewardsDistributed(ctx context.Context, contractID string, tickets int64) error {
	return db.updateContract(ctx, contractID, incRewardsDistributed(tickets))
}

func (db *Database) updateContract(ctx context.Context, contractID string, update bson.M) error {
	res, err := db.collection(model.StakingContractsCollection).
		UpdateOne(ctx, bson.M{"_id": contractID}, update)
	if err != nil {
		return fmt.Errorf("failed to update staking contract %s: %w", contractID, err)
	}
	if res.MatchedCount == 0 {
		return &NotFoundError{
			Key:     contractID,
			Message: "staking contract not found",
		}
	}

	return nil
}

func incTotalStaked(delta int64) bson.M {
	return bson.M{
		"$inc": bson.M{"total_staked": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
}

func incRewardsDistributed(tickets int64) bson.M {
	return bson.M{
		"$inc": bson.M{"total_rewards_distributed": tickets},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
}
