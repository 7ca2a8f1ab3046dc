package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/ledger"
	"solana-custody-lab/internal/protocol"
	"solana-custody-lab/internal/storage"
)

const maxBodyBytes = 1 << 20

// requestError is a malformed request, rejected before any instruction runs.
type requestError struct {
	status int
	code   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func errBadRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, code: "InvalidRequest", msg: fmt.Sprintf(format, args...)}
}

func errNotFound(format string, args ...any) error {
	return &requestError{status: http.StatusNotFound, code: "NotFound", msg: fmt.Sprintf(format, args...)}
}

var errRateLimited = &requestError{status: http.StatusTooManyRequests, code: "RateLimited", msg: "request rate exceeded"}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// statusOf maps an error onto an HTTP status and response body.
func statusOf(err error) (int, ErrorResponse) {
	var re *requestError
	if errors.As(err, &re) {
		return re.status, ErrorResponse{Code: re.code, Message: re.msg, Retryable: re.status == http.StatusTooManyRequests}
	}

	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound, ErrorResponse{Code: "NotFound", Message: err.Error()}
	}

	kind, ok := protocol.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, ErrorResponse{Code: "Internal", Message: "internal error"}
	}

	resp := ErrorResponse{Code: protocol.CodeOf(err), Kind: string(kind), Message: err.Error()}
	switch kind {
	case protocol.KindAuthorization:
		return http.StatusForbidden, resp
	case protocol.KindState:
		if errors.Is(err, protocol.ErrRecordNotFound) {
			return http.StatusNotFound, resp
		}
		return http.StatusConflict, resp
	case protocol.KindFunds, protocol.KindArithmetic:
		return http.StatusUnprocessableEntity, resp
	case protocol.KindValidation:
		return http.StatusBadRequest, resp
	case protocol.KindConcurrency:
		resp.Retryable = true
		return http.StatusConflict, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := statusOf(err)
	resp.RequestID = RequestID(r.Context())
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst and validates its tags.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadRequest("decode body: %v", err)
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return errBadRequest("invalid request: %s", strings.Join(fields, ", "))
		}
		return errBadRequest("invalid request: %v", err)
	}
	return nil
}

// ReceiptResponse reports a committed instruction and the accounts it used.
type ReceiptResponse struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime int64           `json:"block_time"`
	Effects   []domain.Effect `json:"effects"`
	Accounts  any             `json:"accounts,omitempty"`
}

// submit writes the outcome of one instruction.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, accounts any, receipt *ledger.Receipt, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReceiptResponse{
		Signature: receipt.Signature,
		Slot:      receipt.Slot,
		BlockTime: receipt.BlockTime,
		Effects:   receipt.Effects,
		Accounts:  accounts,
	})
}
