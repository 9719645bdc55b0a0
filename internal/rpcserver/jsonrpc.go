package rpcserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"escrow-lab/internal/observability"
	"escrow-lab/internal/solana"
)

const maxRequestBody = 4 << 20

type methodFunc func(ctx context.Context, params []json.RawMessage) (interface{}, error)

// serveRPC handles a single request object or a batch array.
func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, errorResponse(nil, &solana.RPCError{Code: solana.CodeParseError, Message: "Parse error"}))
		return
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			writeJSON(w, errorResponse(nil, &solana.RPCError{Code: solana.CodeParseError, Message: "Parse error"}))
			return
		}
		if len(batch) == 0 {
			writeJSON(w, errorResponse(nil, &solana.RPCError{Code: solana.CodeInvalidRequest, Message: "Invalid request"}))
			return
		}
		responses := make([]*solana.RPCResponse, len(batch))
		for i, raw := range batch {
			responses[i] = s.handle(r.Context(), raw)
		}
		writeJSON(w, responses)
		return
	}

	writeJSON(w, s.handle(r.Context(), body))
}

// handle dispatches one request object.
func (s *Server) handle(ctx context.Context, raw []byte) *solana.RPCResponse {
	var req solana.RPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, &solana.RPCError{Code: solana.CodeParseError, Message: "Parse error"})
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, &solana.RPCError{Code: solana.CodeInvalidRequest, Message: "Invalid request"})
	}

	method, ok := s.methods[req.Method]
	if !ok {
		observability.RecordRPCRequest("unknown", false, 0)
		return errorResponse(req.ID, &solana.RPCError{Code: solana.CodeMethodNotFound, Message: "Method not found"})
	}

	start := time.Now()
	result, err := method(ctx, req.Params)
	observability.RecordRPCRequest(req.Method, err == nil, time.Since(start))
	if err != nil {
		rpcErr := toRPCError(err)
		if rpcErr.Code == solana.CodeInternalError {
			s.logger.Error("rpc method failed", zap.String("method", req.Method), zap.Error(err))
		}
		return errorResponse(req.ID, rpcErr)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("encode rpc result", zap.String("method", req.Method), zap.Error(err))
		return errorResponse(req.ID, &solana.RPCError{Code: solana.CodeInternalError, Message: "Internal error"})
	}
	return &solana.RPCResponse{JSONRPC: "2.0", ID: req.ID, Result: encoded}
}

func errorResponse(id json.RawMessage, err *solana.RPCError) *solana.RPCResponse {
	return &solana.RPCResponse{JSONRPC: "2.0", ID: id, Error: err}
}

func toRPCError(err error) *solana.RPCError {
	var rpcErr *solana.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return &solana.RPCError{Code: solana.CodeInternalError, Message: err.Error()}
}

func invalidParams(format string, args ...interface{}) *solana.RPCError {
	return &solana.RPCError{Code: solana.CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// rpcResult wraps values that carry the slot they were read at.
type rpcResult struct {
	Context solana.RPCContext `json:"context"`
	Value   interface{}       `json:"value"`
}

func (s *Server) withContext(v interface{}) rpcResult {
	return rpcResult{Context: solana.RPCContext{Slot: s.ledger.Slot()}, Value: v}
}

// param decodes the required positional parameter i into v.
func param(params []json.RawMessage, i int, name string, v interface{}) error {
	if i >= len(params) {
		return invalidParams("missing parameter %s", name)
	}
	if err := json.Unmarshal(params[i], v); err != nil {
		return invalidParams("invalid parameter %s: %v", name, err)
	}
	return nil
}

// configParam decodes the optional configuration object at i into v.
func configParam(params []json.RawMessage, i int, v interface{}) error {
	if i >= len(params) || string(params[i]) == "null" {
		return nil
	}
	if err := json.Unmarshal(params[i], v); err != nil {
		return invalidParams("invalid configuration: %v", err)
	}
	return nil
}

func pubkeyParam(params []json.RawMessage, i int, name string) (solana.PublicKey, error) {
	var s string
	if err := param(params, i, name, &s); err != nil {
		return solana.PublicKey{}, err
	}
	pk, err := solana.ParsePublicKey(s)
	if err != nil {
		return solana.PublicKey{}, invalidParams("Invalid param: %v", err)
	}
	return pk, nil
}

func signatureParam(params []json.RawMessage, i int, name string) (solana.Signature, error) {
	var s string
	if err := param(params, i, name, &s); err != nil {
		return solana.Signature{}, err
	}
	sig, err := solana.ParseSignature(s)
	if err != nil {
		return solana.Signature{}, invalidParams("Invalid param: %v", err)
	}
	return sig, nil
}
