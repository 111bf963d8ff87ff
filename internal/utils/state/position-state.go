package state

import "github.com/naffles/nft-staking-rewards/internal/types"

// positionStatusChangeMap maps the current status of a staking position to
// the statuses it can transition to. Unstaked is terminal.
var positionStatusChangeMap = map[types.PositionStatus][]types.PositionStatus{
	types.PositionStatusActive:   {types.PositionStatusUnstaked},
	types.PositionStatusUnstaked: {},
}

func IsQualifiedStatusForPositionStatusChange(
	currentStatus types.PositionStatus, newStatus types.PositionStatus,
) bool {
	qualifiedStatuses, ok := positionStatusChangeMap[currentStatus]
	if !ok {
		return false
	}
	for _, status := range qualifiedStatuses {
		if status == newStatus {
			return true
		}
	}
	return false
}
