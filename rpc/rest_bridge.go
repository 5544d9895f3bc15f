package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/alphabill-org/guardian-core/bridge"
	"github.com/alphabill-org/guardian-core/logger"
	"github.com/alphabill-org/guardian-core/state"
	"github.com/alphabill-org/guardian-core/types"
	"github.com/alphabill-org/guardian-core/verifier"
)

type (
	VAAVerifier interface {
		Verify(ctx context.Context, raw []byte, opts ...verifier.Option) (*types.VAA, error)
	}

	BridgeReader interface {
		GuardianSet(ctx context.Context, index uint32) (*types.GuardianSet, error)
		CurrentGuardianSet(ctx context.Context) (*types.GuardianSet, error)
		PostedVAA(ctx context.Context, messageHash common.Hash) (*bridge.PostedVAA, error)
	}

	verifyResponse struct {
		VAA         *types.VAA  `json:"vaa"`
		MessageHash common.Hash `json:"messageHash"`
		Digest      common.Hash `json:"digest"`
	}

	guardianSetResponse struct {
		*types.GuardianSet
		Quorum int `json:"quorum"`
	}

	errorResponse struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
)

/*
BridgeEndpoints registers the VAA verification and bridge account query
endpoints.
*/
func BridgeEndpoints(vaaVerifier VAAVerifier, reader BridgeReader, log *slog.Logger) RegistrarFunc {
	return func(r *mux.Router) {
		r.HandleFunc("/vaa/verify", verifyVAA(vaaVerifier, log)).Methods(http.MethodPost, http.MethodOptions)
		r.HandleFunc("/guardian-sets/current", getCurrentGuardianSet(reader, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/guardian-sets/{index:[0-9]+}", getGuardianSet(reader, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/posted-vaas/{messageHash}", getPostedVAA(reader, log)).Methods(http.MethodGet, http.MethodOptions)
	}
}

/*
verifyVAA accepts the VAA either as raw bytes (Content-Type application/octet-stream)
or as hex encoded text. Query parameter "allowInactive=true" allows verification
against guardian set which is not active any more.
*/
func verifyVAA(v VAAVerifier, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		raw, err := readVAA(r)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %w", types.ErrMalformedRecord, err), log)
			return
		}
		var opts []verifier.Option
		if ok, _ := strconv.ParseBool(r.URL.Query().Get("allowInactive")); ok {
			opts = append(opts, verifier.AllowInactive())
		}
		vaa, err := v.Verify(r.Context(), raw, opts...)
		if err != nil {
			writeError(w, r, err, log)
			return
		}
		writeResponse(w, r, verifyResponse{VAA: vaa, MessageHash: vaa.MessageHash(), Digest: vaa.SigningDigest()}, log)
	}
}

func readVAA(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if mt, _, _ := mime.ParseMediaType(r.Header.Get(headerContentType)); mt == applicationOctet {
		return body, nil
	}
	return decodeHex(string(bytes.TrimSpace(body)))
}

func getCurrentGuardianSet(reader BridgeReader, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gs, err := reader.CurrentGuardianSet(r.Context())
		if err != nil {
			writeError(w, r, err, log)
			return
		}
		writeResponse(w, r, guardianSetResponse{GuardianSet: gs, Quorum: gs.Quorum()}, log)
	}
}

func getGuardianSet(reader BridgeReader, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 32)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid guardian set index: %w", types.ErrMalformedRecord, err), log)
			return
		}
		gs, err := reader.GuardianSet(r.Context(), uint32(index))
		if err != nil {
			writeError(w, r, err, log)
			return
		}
		writeResponse(w, r, guardianSetResponse{GuardianSet: gs, Quorum: gs.Quorum()}, log)
	}
}

func getPostedVAA(reader BridgeReader, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := decodeHex(mux.Vars(r)["messageHash"])
		if err == nil && len(b) != common.HashLength {
			err = fmt.Errorf("message hash must be %d bytes, got %d", common.HashLength, len(b))
		}
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid message hash: %w", types.ErrMalformedRecord, err), log)
			return
		}
		posted, err := reader.PostedVAA(r.Context(), common.BytesToHash(b))
		if err != nil {
			writeError(w, r, err, log)
			return
		}
		writeResponse(w, r, posted, log)
	}
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding hex: %w", err)
	}
	return b, nil
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, state.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrMalformedRecord):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrGuardianSetUnavailable),
		errors.Is(err, types.ErrInvalidSignatures),
		errors.Is(err, types.ErrAddressMismatch),
		errors.Is(err, types.ErrSignatureSetMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, log *slog.Logger) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.WarnContext(r.Context(), fmt.Sprintf("%s %s failed", r.Method, r.URL.Path), logger.Error(err))
	}
	kind := types.ErrorKind(err)
	if status == http.StatusNotFound && kind == "internal" {
		kind = "not_found"
	}
	w.Header().Set(headerContentType, applicationJson)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Kind: kind}); err != nil {
		log.WarnContext(r.Context(), "failed to write error response", logger.Error(err))
	}
}

func writeResponse(w http.ResponseWriter, r *http.Request, data any, log *slog.Logger) {
	w.Header().Set(headerContentType, applicationJson)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WarnContext(r.Context(), "failed to encode response data as json", logger.Error(err))
	}
}
