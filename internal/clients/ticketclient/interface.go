package ticketclient

import "context"

//go:generate mockery --name=TicketIssuanceInterface --output=../../../tests/mocks --outpkg=mocks --filename=mock_ticket_client.go
type TicketIssuanceInterface interface {
	// MintFreeEntries issues count open-entry tickets to the user. reference
	// identifies the reward so a repeated call does not mint twice.
	MintFreeEntries(ctx context.Context, userID string, count int64, reference string) ([]string, error)
}
