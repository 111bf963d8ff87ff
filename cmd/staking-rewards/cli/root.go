package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/naffles/nft-staking-rewards/pkg"
	"github.com/spf13/cobra"
)

const (
	defaultConfigFileName = "config.yml"
	configPathEnv         = "STAKING_CONFIG_PATH"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "staking-rewards",
		Short: "NFT staking reward engine",
	}
)

func Setup() error {
	homePath, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	defaultConfigPath := pkg.Getenv(configPathEnv, getDefaultConfigFile(homePath, defaultConfigFileName))

	rootCmd.AddCommand(StartServerCmd())
	rootCmd.AddCommand(DistributeCmd())
	rootCmd.AddCommand(ImportContractsCmd())
	rootCmd.AddCommand(RebuildSummaryCmd())
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, fmt.Sprintf("config file (default %s)", defaultConfigPath))

	return rootCmd.Execute()
}

func getDefaultConfigFile(homePath, filename string) string {
	return filepath.Join(homePath, filename)
}

func GetConfigPath() string {
	return cfgPath
}
