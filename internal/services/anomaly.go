package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/observability/metrics"
	"github.com/naffles/nft-staking-rewards/internal/utils/poller"
	"github.com/rs/zerolog/log"
)

type ContractOutlier struct {
	ContractID string  `json:"contractId"`
	Count      int64   `json:"count"`
	Threshold  float64 `json:"threshold"`
}

// AnomalyReport lists staking activity that looks automated or abusive
type AnomalyReport struct {
	Since            time.Time              `json:"since"`
	SuspiciousUsers  []model.UserStakeCount `json:"suspiciousUsers"`
	OutlierContracts []ContractOutlier      `json:"outlierContracts"`
}

func (s *Service) DetectAnomalies(ctx context.Context) (*AnomalyReport, error) {
	cfg := s.cfg.Verification
	since := s.now().Add(-cfg.AnomalyWindow)

	users, err := s.db.CountStakesByUserSince(ctx, since, cfg.MaxStakesPerUser)
	if err != nil {
		return nil, fmt.Errorf("failed to count stakes by user: %w", err)
	}

	contracts, err := s.db.CountStakesByContractSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count stakes by contract: %w", err)
	}

	return &AnomalyReport{
		Since:            since,
		SuspiciousUsers:  users,
		OutlierContracts: contractOutliers(contracts, cfg.ContractOutlierStddev),
	}, nil
}

// contractOutliers flags contracts whose count exceeds mean + k * stddev
func contractOutliers(counts []model.ContractStakeCount, k float64) []ContractOutlier {
	if len(counts) == 0 {
		return nil
	}

	var sum float64
	for _, c := range counts {
		sum += float64(c.Count)
	}
	mean := sum / float64(len(counts))

	var variance float64
	for _, c := range counts {
		d := float64(c.Count) - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(counts)))
	threshold := mean + k*stddev

	var outliers []ContractOutlier
	for _, c := range counts {
		if float64(c.Count) > threshold {
			outliers = append(outliers, ContractOutlier{
				ContractID: c.ContractID,
				Count:      c.Count,
				Threshold:  threshold,
			})
		}
	}
	return outliers
}

func (s *Service) StartAnomalyDetection(ctx context.Context) {
	anomalyPoller := poller.NewPoller(
		s.cfg.Poller.AnomalyPollingInterval,
		metrics.RecordPollerDuration("anomaly", s.reportAnomalies),
		poller.WithClock(s.clock),
	)
	go anomalyPoller.Start(ctx)
}

func (s *Service) reportAnomalies(ctx context.Context) error {
	report, err := s.DetectAnomalies(ctx)
	if err != nil {
		return err
	}

	metrics.RecordAnomalies("user", len(report.SuspiciousUsers))
	metrics.RecordAnomalies("contract", len(report.OutlierContracts))

	for _, u := range report.SuspiciousUsers {
		log.Ctx(ctx).Warn().
			Str("user_id", u.UserID).
			Int64("stakes", u.Count).
			Time("since", report.Since).
			Msg("user exceeded the staking rate limit")
	}
	for _, c := range report.OutlierContracts {
		log.Ctx(ctx).Warn().
			Str("contract_id", c.ContractID).
			Int64("stakes", c.Count).
			Float64("threshold", c.Threshold).
			Msg("unusual staking volume on contract")
	}

	return nil
}
