package mining

import "errors"

var (
	ErrNotInitialized      = errors.New("mining: ledger not initialized")
	ErrAlreadyInitialized  = errors.New("mining: ledger already initialized")
	ErrInvalidParams       = errors.New("mining: invalid params")
	ErrInvalidAmount       = errors.New("mining: invalid amount")
	ErrInvalidContributor  = errors.New("mining: invalid contributor")
	ErrNotStarted          = errors.New("mining: reward schedule not started")
	ErrAssetNotAccepted    = errors.New("mining: asset not accepted")
	ErrTargetNotAuthorized = errors.New("mining: contribution target not authorized")
	ErrUnknownContributor  = errors.New("mining: unknown contributor")
	ErrClaimNotDue         = errors.New("mining: claim not due")
	ErrClaimOutOfOrder     = errors.New("mining: claim period precedes settled cursor")
	ErrReentrantCall       = errors.New("mining: reentrant settlement")
	ErrLengthMismatch      = errors.New("mining: holders and amounts length mismatch")
	ErrStakingUnavailable  = errors.New("mining: staking module not configured")
	ErrAssetsUnavailable   = errors.New("mining: asset ledger not configured")
	ErrPeriodNotFound      = errors.New("mining: period not found")
	ErrContributionMissing = errors.New("mining: contribution not found")
)

// rejectReason maps engine errors onto bounded telemetry labels.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidParams):
		return "invalid_params"
	case errors.Is(err, ErrNotStarted):
		return "not_started"
	case errors.Is(err, ErrAssetNotAccepted):
		return "asset_not_accepted"
	case errors.Is(err, ErrTargetNotAuthorized):
		return "target_not_authorized"
	case errors.Is(err, ErrClaimNotDue):
		return "claim_not_due"
	case errors.Is(err, ErrClaimOutOfOrder):
		return "claim_out_of_order"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant"
	case errors.Is(err, ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, ErrUnknownContributor), errors.Is(err, ErrInvalidContributor):
		return "contributor"
	default:
		return "other"
	}
}
