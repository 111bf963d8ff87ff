package chainclient

import "context"

// OnChainPosition is the staking record as reported by the chain indexer
type OnChainPosition struct {
	Owner           string `json:"owner"`
	NFTContract     string `json:"nftContract"`
	TokenID         string `json:"tokenId"`
	Active          bool   `json:"active"`
	DurationMonths  int    `json:"durationMonths"`
	StakedTimestamp int64  `json:"stakedTimestamp"`
}

//go:generate mockery --name=ChainInterface --output=../../../tests/mocks --outpkg=mocks --filename=mock_chain_client.go
type ChainInterface interface {
	VerifyPosition(ctx context.Context, chain, onChainPositionID string) (*OnChainPosition, error)
}
