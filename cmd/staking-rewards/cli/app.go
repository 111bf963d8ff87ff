package cli

import (
	"context"
	"fmt"

	"github.com/naffles/nft-staking-rewards/internal/clients/chainclient"
	"github.com/naffles/nft-staking-rewards/internal/clients/ticketclient"
	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/naffles/nft-staking-rewards/internal/db"
	dbmodel "github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/queue"
	"github.com/naffles/nft-staking-rewards/internal/services"
)

// app holds the wired dependencies shared by the commands
type app struct {
	cfg     *config.Config
	db      db.DbInterface
	service *services.Service
	queue   *queue.QueueManager
}

func newApp(ctx context.Context) (*app, error) {
	cfgPath := GetConfigPath()
	cfg, err := config.New(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("error while loading config file %s: %w", cfgPath, err)
	}

	if err := dbmodel.Setup(ctx, &cfg.Db); err != nil {
		return nil, fmt.Errorf("error while setting up staking db model: %w", err)
	}

	var dbClient db.DbInterface
	dbClient, err = db.New(ctx, cfg.Db)
	if err != nil {
		return nil, fmt.Errorf("error while creating db client: %w", err)
	}
	dbClient = db.NewDbWithMetrics(dbClient)

	var tickets ticketclient.TicketIssuanceInterface = ticketclient.NewClient(&cfg.TicketIssuance)
	tickets = ticketclient.NewTicketClientWithMetrics(tickets)

	var chain chainclient.ChainInterface = chainclient.NewClient(&cfg.Chain)
	chain = chainclient.NewChainClientWithMetrics(chain)

	a := &app{cfg: cfg, db: dbClient}

	var notifier queue.Notifier = queue.DisabledNotifier{}
	if cfg.Notification != nil {
		a.queue, err = queue.NewQueueManager(cfg.Notification)
		if err != nil {
			return nil, fmt.Errorf("error while creating queue manager: %w", err)
		}
		a.queue.Start(ctx)
		notifier = a.queue
	}

	a.service = services.NewService(cfg, dbClient, tickets, chain, notifier)
	return a, nil
}

// close drains pending notifications
func (a *app) close() {
	if a.queue != nil {
		a.queue.Shutdown()
	}
}
