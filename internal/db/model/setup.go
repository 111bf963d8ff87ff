package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type index struct {
	Keys   bson.D
	Unique bool
	// Partial restricts the index to documents matching the filter
	Partial bson.M
}

const namespaceExistsErrorCode = 48

var collections = map[string][]index{
	StakingContractsCollection: {
		{Keys: bson.D{{Key: "chain", Value: 1}, {Key: "contract_address", Value: 1}}, Unique: true},
	},
	StakingPositionsCollection: {
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "unstake_at", Value: 1}, {Key: "last_reward_distribution", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "staked_at", Value: -1}}},
		{Keys: bson.D{{Key: "contract_id", Value: 1}, {Key: "staked_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "verification.checked_at", Value: 1}}},
		{
			// an NFT can back only one active position
			Keys:    bson.D{{Key: "nft.chain", Value: 1}, {Key: "nft.contract_address", Value: 1}, {Key: "nft.token_id", Value: 1}},
			Unique:  true,
			Partial: bson.M{"status": "active"},
		},
	},
	RewardHistoryCollection: {
		{Keys: bson.D{{Key: "position_id", Value: 1}, {Key: "distribution_date", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "contract_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "distribution_date", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "batch_id", Value: 1}}},
	},
	DistributionLeaseCollection:  nil,
	DistributionStatusCollection: nil,
}

// Setup creates collections and indexes. It is safe to run on every start.
func Setup(ctx context.Context, cfg *config.DbConfig) error {
	credential := options.Credential{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	clientOpts := options.Client().ApplyURI(cfg.Address)
	if cfg.Username != "" {
		clientOpts = clientOpts.SetAuth(credential)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to disconnect setup client")
		}
	}()

	database := client.Database(cfg.DbName)

	// Create a context with timeout
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for collection, idxs := range collections {
		createCollection(ctx, database, collection)
		for _, idx := range idxs {
			if err := createIndex(ctx, database, collection, idx); err != nil {
				return err
			}
		}
	}

	log.Ctx(ctx).Info().Msg("Collections and indexes created successfully")
	return nil
}

func createCollection(ctx context.Context, database *mongo.Database, collectionName string) {
	// create collections up front instead of implicitly on first transactional insert
	if err := database.CreateCollection(ctx, collectionName); err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == namespaceExistsErrorCode {
			return
		}
		log.Ctx(ctx).Warn().Err(err).Str("collection", collectionName).Msg("failed to create collection")
		return
	}

	log.Ctx(ctx).Debug().Str("collection", collectionName).Msg("collection created")
}

func createIndex(ctx context.Context, database *mongo.Database, collectionName string, idx index) error {
	opts := options.Index().SetUnique(idx.Unique)
	if idx.Partial != nil {
		opts = opts.SetPartialFilterExpression(idx.Partial)
	}

	_, err := database.Collection(collectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    idx.Keys,
		Options: opts,
	})
	if err != nil {
		return fmt.Errorf("failed to create index on %s: %w", collectionName, err)
	}

	log.Ctx(ctx).Debug().Str("collection", collectionName).Msg("index created")
	return nil
}
