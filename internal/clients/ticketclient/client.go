package ticketclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/naffles/nft-staking-rewards/internal/clients/client"
	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	mintEndpoint = "/v1/free-entries"
	ticketSource = "nft_staking"
)

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        *config.TicketIssuanceConfig
}

func NewClient(cfg *config.TicketIssuanceConfig) *Client {
	return &Client{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
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

type mintRequest struct {
	UserID    string `json:"userId"`
	Count     int64  `json:"count"`
	Source    string `json:"source"`
	Reference string `json:"reference"`
}

type mintResponse struct {
	TicketIDs []string `json:"ticketIds"`
}

func (c *Client) MintFreeEntries(ctx context.Context, userID string, count int64, reference string) ([]string, error) {
	if count <= 0 {
		return nil, &types.TicketIssuanceError{
			UserID: userID,
			Count:  count,
			Err:    fmt.Errorf("ticket count must be positive"),
		}
	}

	callMint := func() (*mintResponse, error) {
		// every attempt counts against the shared rate
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		opts := &client.HttpClientOptions{
			Path:         mintEndpoint,
			TemplatePath: mintEndpoint,
			Headers: map[string]string{
				"X-Api-Key":       c.cfg.APIKey,
				"Idempotency-Key": reference,
			},
		}
		req := &mintRequest{
			UserID:    userID,
			Count:     count,
			Source:    ticketSource,
			Reference: reference,
		}

		return client.SendRequest[mintRequest, mintResponse](ctx, c, http.MethodPost, opts, req)
	}

	resp, err := clientCallWithRetry(ctx, callMint, c.cfg.MaxRetryTimes, c.cfg.RetryInterval)
	if err != nil {
		return nil, &types.TicketIssuanceError{UserID: userID, Count: count, Err: err}
	}
	if int64(len(resp.TicketIDs)) != count {
		log.Ctx(ctx).Warn().
			Str("user_id", userID).
			Int64("requested", count).
			Int("issued", len(resp.TicketIDs)).
			Msg("ticket issuance returned an unexpected number of ticket ids")
	}

	return resp.TicketIDs, nil
}

func clientCallWithRetry[T any](
	ctx context.Context,
	call retry.RetryableFuncWithData[T],
	attempts uint,
	delay time.Duration,
) (T, error) {
	return retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(client.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().
				Uint("attempt", n+1).
				Uint("max_attempts", attempts).
				Err(err).
				Msg("ticket issuance failed, retrying")
		}),
	)
}
