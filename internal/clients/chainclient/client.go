package chainclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/naffles/nft-staking-rewards/internal/clients/client"
	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/rs/zerolog/log"
)

const positionEndpoint = "/v1/chains/{chain}/staking-positions/{id}"

type Client struct {
	httpClient *http.Client
	cfg        *config.ChainConfig
}

func NewClient(cfg *config.ChainConfig) *Client {
	return &Client{
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

func (c *Client) GetBaseURL() string {
	return c.cfg.URL
}

func (c *Client) GetDefaultRequestTimeout() time.Duration {
	return c.cfg.Timeout
}

func (c *Client) GetHttpClient() *http.Client {
	return c.httpClient
}

func (c *Client) VerifyPosition(ctx context.Context, chain, onChainPositionID string) (*OnChainPosition, error) {
	if onChainPositionID == "" {
		return nil, fmt.Errorf("empty on-chain position id provided")
	}

	type empty struct{}
	callForPosition := func() (*OnChainPosition, error) {
		path := fmt.Sprintf("/v1/chains/%s/staking-positions/%s",
			url.PathEscape(chain), url.PathEscape(onChainPositionID))

		opts := &client.HttpClientOptions{
			Path:         path,
			TemplatePath: positionEndpoint,
		}

		return client.SendRequest[empty, OnChainPosition](ctx, c, http.MethodGet, opts, nil)
	}

	position, err := retry.DoWithData(callForPosition,
		retry.Context(ctx),
		retry.Attempts(c.cfg.MaxRetryTimes),
		retry.Delay(c.cfg.RetryInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(client.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().
				Uint("attempt", n+1).
				Str("chain", chain).
				Err(err).
				Msg("chain position lookup failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read on-chain position %s on %s: %w", onChainPositionID, chain, err)
	}

	return position, nil
}
