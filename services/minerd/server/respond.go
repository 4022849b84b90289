package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"contribmine/native/bank"
	"contribmine/native/community"
	nativecommon "contribmine/native/common"
	"contribmine/native/mining"
	"contribmine/native/staking"
	"contribmine/native/treasury"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps an operation error onto an HTTP status.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, mining.ErrInvalidParams),
		errors.Is(err, mining.ErrInvalidAmount),
		errors.Is(err, mining.ErrInvalidContributor),
		errors.Is(err, mining.ErrAssetNotAccepted),
		errors.Is(err, mining.ErrTargetNotAuthorized),
		errors.Is(err, mining.ErrLengthMismatch),
		errors.Is(err, treasury.ErrAssetNotAccepted),
		errors.Is(err, community.ErrCommunityNotFound),
		errors.Is(err, community.ErrAssetMismatch),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrInvalidAsset),
		errors.Is(err, staking.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, mining.ErrUnknownContributor),
		errors.Is(err, mining.ErrPeriodNotFound),
		errors.Is(err, mining.ErrContributionMissing):
		return http.StatusNotFound
	case errors.Is(err, mining.ErrNotInitialized),
		errors.Is(err, mining.ErrAlreadyInitialized),
		errors.Is(err, mining.ErrNotStarted),
		errors.Is(err, mining.ErrClaimNotDue),
		errors.Is(err, mining.ErrClaimOutOfOrder),
		errors.Is(err, mining.ErrReentrantCall),
		errors.Is(err, community.ErrCommunityInactive),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, staking.ErrInsufficientStake):
		return http.StatusConflict
	case isQuotaError(err):
		return http.StatusTooManyRequests
	case errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, mining.ErrStakingUnavailable),
		errors.Is(err, mining.ErrAssetsUnavailable),
		errors.Is(err, staking.ErrNotifierUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isQuotaError(err error) bool {
	return errors.Is(err, nativecommon.ErrQuotaRequestsExceeded) ||
		errors.Is(err, nativecommon.ErrQuotaValueCapExceeded) ||
		errors.Is(err, nativecommon.ErrQuotaCounterOverflow)
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

// parseAmount accepts a decimal string that fits in 256 bits.
func parseAmount(field, raw string) (*big.Int, error) {
	value, err := uint256.FromDecimal(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return value.ToBig(), nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%w: %s: invalid address %q", errBadRequest, field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseUint(field, raw string) (uint64, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return value, nil
}

// queryUint parses an optional query parameter, returning fallback when absent.
func queryUint(r *http.Request, key string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return parseUint(key, raw)
}
