package marketrpc

import (
	"encoding/json"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/claimvault/ledger"
)

// wireError is the JSON form of a structured ledger error carried in a grpc
// status message. The grpc status code is a coarse mapping for generic
// clients; wireError is what our own client restores the taxonomy from.
type wireError struct {
	Code    ledger.Code `json:"code"`
	Op      string      `json:"op,omitempty"`
	Message string      `json:"message,omitempty"`
	Amount  int64       `json:"amount,omitempty"`
}

func grpcCode(c ledger.Code) codes.Code {
	switch c {
	case ledger.CodeNotFound:
		return codes.NotFound
	case ledger.CodeNotHolder, ledger.CodeNotSeller, ledger.CodeUnauthorized:
		return codes.PermissionDenied
	case ledger.CodeInvalidBalance, ledger.CodeInvalidCommitment,
		ledger.CodeInvalidPrice, ledger.CodeSelfTrade, ledger.CodeImpossibleBalance:
		return codes.InvalidArgument
	case ledger.CodeReentrancy:
		return codes.Aborted
	case ledger.CodeInternal, ledger.CodeHalted:
		return codes.Internal
	default:
		// The remaining taxonomy is state-shaped: duplicate mints, existing
		// listings, missing requests, cooldowns, short stakes and funds.
		return codes.FailedPrecondition
	}
}

// statusErr converts a server-side failure into a grpc status. Structured
// ledger errors travel as JSON so the client can restore them losslessly.
func statusErr(err error) error {
	if err == nil {
		return nil
	}
	var le *ledger.Error
	if !errors.As(err, &le) {
		return status.Error(codes.Unknown, err.Error())
	}
	b, jerr := json.Marshal(wireError{
		Code:    le.Code,
		Op:      le.Op,
		Message: le.Message,
		Amount:  le.Amount,
	})
	if jerr != nil {
		return status.Error(grpcCode(le.Code), le.Error())
	}
	return status.Error(grpcCode(le.Code), string(b))
}

// mapRPC restores a structured ledger error from a grpc status produced by
// statusErr. Statuses from other sources pass through unchanged.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var we wireError
	if jerr := json.Unmarshal([]byte(st.Message()), &we); jerr != nil || we.Code == "" {
		return err
	}
	return &ledger.Error{Code: we.Code, Op: we.Op, Message: we.Message, Amount: we.Amount}
}
