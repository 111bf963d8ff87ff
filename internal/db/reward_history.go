package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RewardCommit is everything written by one successful distribution.
// PreviousDistribution is the last_reward_distribution observed when the
// position was read; the position update only applies if it is unchanged.
type RewardCommit struct {
	Record               *model.RewardHistoryRecord
	SummaryEntry         model.RewardSummaryEntry
	PreviousDistribution *time.Time
}

func (db *Database) CommitRewardDistribution(ctx context.Context, commit *RewardCommit) error {
	record := commit.Record

	var previous any
	if commit.PreviousDistribution != nil {
		previous = *commit.PreviousDistribution
	}
	positionFilter := bson.M{
		"_id":                      record.PositionID,
		"status":                   types.PositionStatusActive.String(),
		"last_reward_distribution": previous,
	}
	positionUpdate := bson.M{
		"$inc":  bson.M{"total_rewards_earned": record.OpenEntryTickets},
		"$set":  bson.M{"last_reward_distribution": commit.SummaryEntry.DistributedAt},
		"$push": bson.M{"reward_summary": commit.SummaryEntry},
	}

	return db.withTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		_, err := db.collection(model.RewardHistoryCollection).InsertOne(sessCtx, record)
		if err != nil {
			return asDuplicateKeyError(err, record.ID, "reward history record already exists")
		}

		res, err := db.collection(model.StakingPositionsCollection).
			UpdateOne(sessCtx, positionFilter, positionUpdate)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			// aborting discards the ledger insert above
			return &types.PositionAlreadyRewardedError{PositionID: record.PositionID}
		}

		res, err = db.collection(model.StakingContractsCollection).
			UpdateOne(sessCtx, bson.M{"_id": record.ContractID}, incRewardsDistributed(record.OpenEntryTickets))
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return &NotFoundError{
				Key:     record.ContractID,
				Message: "staking contract not found",
			}
		}

		return nil
	})
}

func (db *Database) SaveFailedRewardRecord(ctx context.Context, record *model.RewardHistoryRecord) error {
	if record.Status != types.RecordStatusFailed {
		return fmt.Errorf("record %s is not a failed record", record.ID)
	}

	_, err := db.collection(model.RewardHistoryCollection).InsertOne(ctx, record)
	return asDuplicateKeyError(err, record.ID, "reward history record already exists")
}

func (db *Database) GetRewardHistoryByPosition(ctx context.Context, positionID string) ([]model.RewardHistoryRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "distribution_date", Value: 1}})
	cursor, err := db.collection(model.RewardHistoryCollection).
		Find(ctx, bson.M{"position_id": positionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []model.RewardHistoryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	return records, nil
}

func (db *Database) GetUserRewardTotals(ctx context.Context, userID string) (*model.UserRewardTotals, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{
			"user_id": userID,
			"status":  types.RecordStatusDistributed.String(),
		}},
		bson.M{"$group": bson.M{
			"_id":                   "$user_id",
			"total_tickets":         bson.M{"$sum": "$open_entry_tickets"},
			"total_effective_value": bson.M{"$sum": "$effective_value"},
			"distributions":         bson.M{"$sum": 1},
			"last_distribution":     bson.M{"$max": "$distribution_date"},
		}},
	}

	totals := &model.UserRewardTotals{UserID: userID}
	if err := db.aggregateOne(ctx, model.RewardHistoryCollection, pipeline, totals); err != nil {
		return nil, err
	}

	return totals, nil
}

func (db *Database) GetContractPerformance(ctx context.Context, contractID string) (*model.ContractPerformance, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{
			"contract_id": contractID,
			"status":      types.RecordStatusDistributed.String(),
		}},
		bson.M{"$group": bson.M{
			"_id":                   "$contract_id",
			"total_tickets":         bson.M{"$sum": "$open_entry_tickets"},
			"total_effective_value": bson.M{"$sum": "$effective_value"},
			"distributions":         bson.M{"$sum": 1},
			"users":                 bson.M{"$addToSet": "$user_id"},
			"positions":             bson.M{"$addToSet": "$position_id"},
			"average_multiplier":    bson.M{"$avg": "$bonus_multiplier"},
		}},
		bson.M{"$project": bson.M{
			"total_tickets":         1,
			"total_effective_value": 1,
			"distributions":         1,
			"average_multiplier":    1,
			"unique_users":          bson.M{"$size": "$users"},
			"unique_positions":      bson.M{"$size": "$positions"},
		}},
	}

	performance := &model.ContractPerformance{ContractID: contractID}
	if err := db.aggregateOne(ctx, model.RewardHistoryCollection, pipeline, performance); err != nil {
		return nil, err
	}

	return performance, nil
}

// GetMonthlyDistributionSummary groups distributed records in [from, to) by
// UTC calendar month, ordered by month.
func (db *Database) GetMonthlyDistributionSummary(
	ctx context.Context, from, to time.Time,
) ([]model.MonthlyDistributionSummary, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{
			"status":            types.RecordStatusDistributed.String(),
			"distribution_date": bson.M{"$gte": from, "$lt": to},
		}},
		bson.M{"$group": bson.M{
			"_id": bson.M{
				"month": bson.M{"$dateToString": bson.M{
					"format": "%Y-%m",
					"date":   "$distribution_date",
				}},
				"type": "$distribution_type",
			},
			"total_tickets":         bson.M{"$sum": "$open_entry_tickets"},
			"total_effective_value": bson.M{"$sum": "$effective_value"},
			"distributions":         bson.M{"$sum": 1},
		}},
	}

	cursor, err := db.collection(model.RewardHistoryCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID struct {
			Month string                 `bson:"month"`
			Type  types.DistributionType `bson:"type"`
		} `bson:"_id"`
		TotalTickets        int64   `bson:"total_tickets"`
		TotalEffectiveValue float64 `bson:"total_effective_value"`
		Distributions       int64   `bson:"distributions"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	byMonth := make(map[string]*model.MonthlyDistributionSummary)
	for _, row := range rows {
		summary, ok := byMonth[row.ID.Month]
		if !ok {
			summary = &model.MonthlyDistributionSummary{
				Month:  row.ID.Month,
				ByType: make(map[types.DistributionType]int64),
			}
			byMonth[row.ID.Month] = summary
		}
		summary.TotalTickets += row.TotalTickets
		summary.TotalEffectiveValue += row.TotalEffectiveValue
		summary.Distributions += row.Distributions
		summary.ByType[row.ID.Type] += row.TotalTickets
	}

	result := make([]model.MonthlyDistributionSummary, 0, len(byMonth))
	for _, summary := range byMonth {
		result = append(result, *summary)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Month < result[j].Month
	})

	return result, nil
}

func (db *Database) SumPositionLedgerTickets(ctx context.Context, positionID string) (int64, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{
			"position_id": positionID,
			"status":      types.RecordStatusDistributed.String(),
		}},
		bson.M{"$group": bson.M{
			"_id":           nil,
			"total_tickets": bson.M{"$sum": "$open_entry_tickets"},
		}},
	}

	var result struct {
		TotalTickets int64 `bson:"total_tickets"`
	}
	if err := db.aggregateOne(ctx, model.RewardHistoryCollection, pipeline, &result); err != nil {
		return 0, err
	}

	return result.TotalTickets, nil
}

func (db *Database) RebuildPositionRewardSummary(ctx context.Context, positionID string) (*model.StakingPosition, error) {
	records, err := db.GetRewardHistoryByPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}

	summary := make([]model.RewardSummaryEntry, 0, len(records))
	var total int64
	for _, record := range records {
		if record.Status != types.RecordStatusDistributed {
			continue
		}
		summary = append(summary, model.RewardSummaryEntry{
			RecordID:         record.ID,
			DistributedAt:    record.DistributionDate,
			Tickets:          record.OpenEntryTickets,
			BonusMultiplier:  record.BonusMultiplier,
			DistributionType: record.DistributionType,
		})
		total += record.OpenEntryTickets
	}

	update := bson.M{"$set": bson.M{
		"reward_summary":       summary,
		"total_rewards_earned": total,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	res := db.collection(model.StakingPositionsCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": positionID}, update, opts)

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

// aggregateOne decodes the first pipeline result into out and leaves out
// untouched when the pipeline yields nothing.
func (db *Database) aggregateOne(ctx context.Context, collection string, pipeline bson.A, out any) error {
	cursor, err := db.collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	if cursor.Next(ctx) {
		if err := cursor.Decode(out); err != nil {
			return err
		}
	}

	return cursor.Err()
}
