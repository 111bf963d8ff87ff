package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type contractsFile struct {
	Contracts []contractEntry `yaml:"contracts"`
}

type contractEntry struct {
	ID              string                `yaml:"id"`
	Name            string                `yaml:"name"`
	Chain           string                `yaml:"chain"`
	ContractAddress string                `yaml:"contract-address"`
	Active          *bool                 `yaml:"active"`
	Validated       bool                  `yaml:"validated"`
	RewardStructure types.RewardStructure `yaml:"reward-structure"`
}

// ImportContractsCmd registers or updates staking contracts from a YAML file
// Usage: ./staking-rewards import-contracts --config config.yml contracts.yml
func ImportContractsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-contracts <file>",
		Short: "Import staking contracts and their reward tiers",
		Args:  cobra.ExactArgs(1),
		RunE:  importContracts,
	}

	return cmd
}

func importContracts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	fd, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer fd.Close()

	contracts, err := parseContracts(fd, time.Now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return fmt.Errorf("invalid contracts file %s: %w", args[0], err)
	}

	cfg, err := config.New(GetConfigPath())
	if err != nil {
		return err
	}
	if err := model.Setup(ctx, &cfg.Db); err != nil {
		return err
	}
	dbClient, err := db.New(ctx, cfg.Db)
	if err != nil {
		return err
	}

	return saveContracts(ctx, dbClient, contracts)
}

func saveContracts(ctx context.Context, dbClient db.DbInterface, contracts []*model.StakingContract) error {
	for _, contract := range contracts {
		// counters and creation time of an existing contract are kept
		if err := dbClient.SaveStakingContract(ctx, contract); err != nil {
			return fmt.Errorf("failed to save contract %s: %w", contract.ID, err)
		}

		log.Ctx(ctx).Info().
			Str("contract_id", contract.ID).
			Bool("active", contract.IsActive).
			Bool("validated", contract.IsValidated).
			Msg("Staking contract imported")
	}

	return nil
}

// parseContracts decodes and validates a contracts file. Contracts are
// active unless the file says otherwise.
func parseContracts(r io.Reader, now time.Time) ([]*model.StakingContract, error) {
	var file contractsFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no contracts")
		}
		return nil, err
	}
	if len(file.Contracts) == 0 {
		return nil, errors.New("no contracts")
	}

	seen := make(map[string]struct{}, len(file.Contracts))
	contracts := make([]*model.StakingContract, 0, len(file.Contracts))
	for i, entry := range file.Contracts {
		if entry.ID == "" || entry.Name == "" || entry.ContractAddress == "" {
			return nil, fmt.Errorf("contract #%d: id, name and contract-address are required", i+1)
		}
		if _, ok := seen[entry.ID]; ok {
			return nil, fmt.Errorf("contract %s is listed twice", entry.ID)
		}
		seen[entry.ID] = struct{}{}

		if err := entry.RewardStructure.Validate(); err != nil {
			return nil, fmt.Errorf("contract %s: %w", entry.ID, err)
		}

		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		chain := entry.Chain
		if chain == "" {
			chain = "ethereum"
		}

		contracts = append(contracts, &model.StakingContract{
			ID:              entry.ID,
			Name:            entry.Name,
			Chain:           strings.ToLower(chain),
			ContractAddress: entry.ContractAddress,
			RewardStructure: entry.RewardStructure,
			IsActive:        active,
			IsValidated:     entry.Validated,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	return contracts, nil
}
