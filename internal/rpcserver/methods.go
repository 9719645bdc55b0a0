package rpcserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"escrow-lab/internal/observability"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/svm"
	"escrow-lab/internal/vm"
)

const maxSignaturesLimit = 1000

func (s *Server) registerMethods() map[string]methodFunc {
	return map[string]methodFunc{
		"getAccountInfo":                    s.getAccountInfo,
		"getBalance":                        s.getBalance,
		"getHealth":                         s.getHealth,
		"getLatestBlockhash":                s.getLatestBlockhash,
		"getMinimumBalanceForRentExemption": s.getMinimumBalanceForRentExemption,
		"getSignatureStatuses":              s.getSignatureStatuses,
		"getSignaturesForAddress":           s.getSignaturesForAddress,
		"getSlot":                           s.getSlot,
		"getTokenAccountBalance":            s.getTokenAccountBalance,
		"getTransaction":                    s.getTransaction,
		"requestAirdrop":                    s.requestAirdrop,
		"sendTransaction":                   s.sendTransaction,
		"simulateTransaction":               s.simulateTransaction,
	}
}

type encodingConfig struct {
	Encoding string `json:"encoding"`
}

func (s *Server) getAccountInfo(_ context.Context, params []json.RawMessage) (interface{}, error) {
	pk, err := pubkeyParam(params, 0, "pubkey")
	if err != nil {
		return nil, err
	}
	var cfg encodingConfig
	if err := configParam(params, 1, &cfg); err != nil {
		return nil, err
	}

	acct, ok := s.ledger.GetAccount(pk)
	if !ok {
		return s.withContext(nil), nil
	}

	var data []string
	switch cfg.Encoding {
	case "", "base64":
		data = []string{base64.StdEncoding.EncodeToString(acct.Data), "base64"}
	case "base58":
		data = []string{base58.Encode(acct.Data), "base58"}
	default:
		return nil, invalidParams("unsupported encoding %q", cfg.Encoding)
	}

	return s.withContext(&solana.AccountInfo{
		Lamports:   acct.Lamports,
		Owner:      acct.Owner.String(),
		Data:       data,
		Executable: acct.Executable,
		RentEpoch:  acct.RentEpoch,
		Space:      uint64(len(acct.Data)),
	}), nil
}

func (s *Server) getBalance(_ context.Context, params []json.RawMessage) (interface{}, error) {
	pk, err := pubkeyParam(params, 0, "pubkey")
	if err != nil {
		return nil, err
	}
	return s.withContext(s.ledger.Balance(pk)), nil
}

func (s *Server) getHealth(context.Context, []json.RawMessage) (interface{}, error) {
	return "ok", nil
}

func (s *Server) getLatestBlockhash(context.Context, []json.RawMessage) (interface{}, error) {
	return s.withContext(solana.BlockhashInfo{
		Blockhash:            s.ledger.LatestBlockhash().String(),
		LastValidBlockHeight: s.ledger.Slot() + svm.MaxRecentBlockhashes,
	}), nil
}

func (s *Server) getMinimumBalanceForRentExemption(_ context.Context, params []json.RawMessage) (interface{}, error) {
	var n uint64
	if err := param(params, 0, "dataLength", &n); err != nil {
		return nil, err
	}
	if n > vm.MaxPermittedDataLength {
		return nil, invalidParams("dataLength %d exceeds the maximum account size of %d bytes", n, vm.MaxPermittedDataLength)
	}
	return s.ledger.MinimumBalanceForRentExemption(int(n)), nil
}

func (s *Server) getSlot(context.Context, []json.RawMessage) (interface{}, error) {
	return s.ledger.Slot(), nil
}

func (s *Server) getTokenAccountBalance(_ context.Context, params []json.RawMessage) (interface{}, error) {
	pk, err := pubkeyParam(params, 0, "pubkey")
	if err != nil {
		return nil, err
	}
	acct, ok := s.ledger.GetAccount(pk)
	if !ok {
		return nil, invalidParams("Invalid param: could not find account")
	}
	if acct.Owner != solana.TokenProgramID {
		return nil, invalidParams("Invalid param: not a Token account")
	}
	ta, err := token.UnpackAccount(acct.Data)
	if err != nil {
		return nil, invalidParams("Invalid param: not a Token account")
	}

	var decimals uint8
	if mintAcct, ok := s.ledger.GetAccount(ta.Mint); ok {
		if mint, err := token.UnpackMint(mintAcct.Data); err == nil {
			decimals = mint.Decimals
		}
	}

	return s.withContext(solana.TokenAmount{
		Amount:         strconv.FormatUint(ta.Amount, 10),
		Decimals:       decimals,
		UIAmountString: uiAmountString(ta.Amount, decimals),
	}), nil
}

// uiAmountString renders amount with decimals places, trailing zeros trimmed.
func uiAmountString(amount uint64, decimals uint8) string {
	s := strconv.FormatUint(amount, 10)
	d := int(decimals)
	if d == 0 {
		return s
	}
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	whole, frac := s[:len(s)-d], strings.TrimRight(s[len(s)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

func (s *Server) getTransaction(_ context.Context, params []json.RawMessage) (interface{}, error) {
	sig, err := signatureParam(params, 0, "signature")
	if err != nil {
		return nil, err
	}
	var cfg encodingConfig
	if err := configParam(params, 1, &cfg); err != nil {
		return nil, err
	}
	if cfg.Encoding != "" && cfg.Encoding != "json" {
		return nil, invalidParams("unsupported encoding %q", cfg.Encoding)
	}

	ptx, ok := s.ledger.GetTransaction(sig)
	if !ok {
		return nil, nil
	}
	return confirmedTransaction(ptx), nil
}

func confirmedTransaction(ptx *svm.ProcessedTransaction) *solana.ConfirmedTransaction {
	meta := ptx.Meta
	blockTime := meta.BlockTime

	keys := make([]string, len(meta.AccountKeys))
	for i, k := range meta.AccountKeys {
		keys[i] = k.String()
	}
	tx := &solana.EncodedTx{Message: &solana.EncodedMessage{AccountKeys: keys}}
	if ptx.Transaction != nil {
		for _, sig := range ptx.Transaction.Signatures {
			tx.Signatures = append(tx.Signatures, sig.String())
		}
		tx.Message.RecentBlockhash = ptx.Transaction.Message.RecentBlockhash.String()
	}

	return &solana.ConfirmedTransaction{
		Slot:      meta.Slot,
		BlockTime: &blockTime,
		Meta: &solana.TransactionMeta{
			Err:                  svm.ErrorJSON(ptx.Err),
			Fee:                  meta.Fee,
			LogMessages:          meta.Logs,
			ComputeUnitsConsumed: meta.ComputeUnitsConsumed,
			PreBalances:          meta.PreBalances,
			PostBalances:         meta.PostBalances,
		},
		Transaction: tx,
	}
}

type signaturesConfig struct {
	Before string `json:"before"`
	Until  string `json:"until"`
	Limit  int    `json:"limit"`
}

func (s *Server) getSignaturesForAddress(_ context.Context, params []json.RawMessage) (interface{}, error) {
	addr, err := pubkeyParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	var cfg signaturesConfig
	if err := configParam(params, 1, &cfg); err != nil {
		return nil, err
	}

	q := svm.HistoryQuery{Limit: cfg.Limit}
	if q.Limit <= 0 || q.Limit > maxSignaturesLimit {
		q.Limit = maxSignaturesLimit
	}
	if cfg.Before != "" {
		if q.Before, err = solana.ParseSignature(cfg.Before); err != nil {
			return nil, invalidParams("Invalid param: before: %v", err)
		}
	}
	if cfg.Until != "" {
		if q.Until, err = solana.ParseSignature(cfg.Until); err != nil {
			return nil, invalidParams("Invalid param: until: %v", err)
		}
	}

	history := s.ledger.SignaturesForAddress(addr, q)
	out := make([]solana.SignatureInfo, len(history))
	for i, ptx := range history {
		blockTime := ptx.Meta.BlockTime
		out[i] = solana.SignatureInfo{
			Signature: ptx.Meta.Signature.String(),
			Slot:      ptx.Meta.Slot,
			BlockTime: &blockTime,
			Err:       svm.ErrorJSON(ptx.Err),
		}
	}
	return out, nil
}

func (s *Server) getSignatureStatuses(_ context.Context, params []json.RawMessage) (interface{}, error) {
	var sigs []string
	if err := param(params, 0, "signatures", &sigs); err != nil {
		return nil, err
	}
	if len(sigs) > 256 {
		return nil, invalidParams("Too many inputs provided; max 256")
	}

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, str := range sigs {
		sig, err := solana.ParseSignature(str)
		if err != nil {
			return nil, invalidParams("Invalid param: %v", err)
		}
		ptx, ok := s.ledger.GetTransaction(sig)
		if !ok {
			continue
		}
		statuses[i] = &solana.SignatureStatus{
			Slot:               ptx.Meta.Slot,
			Err:                svm.ErrorJSON(ptx.Err),
			ConfirmationStatus: "finalized",
		}
	}
	return s.withContext(statuses), nil
}

func (s *Server) requestAirdrop(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	to, err := pubkeyParam(params, 0, "pubkey")
	if err != nil {
		return nil, err
	}
	var lamports uint64
	if err := param(params, 1, "lamports", &lamports); err != nil {
		return nil, err
	}
	if lamports == 0 {
		return nil, invalidParams("Invalid param: lamports must be positive")
	}
	if s.maxAirdrop > 0 && lamports > s.maxAirdrop {
		return nil, invalidParams("Invalid param: airdrop of %d lamports exceeds the %d limit", lamports, s.maxAirdrop)
	}

	if s.limiter != nil {
		res, err := s.limiter.Allow(ctx, to.String())
		switch {
		case err != nil:
			// Fail open when the limiter backend is unavailable
			s.logger.Warn("airdrop rate limiter unavailable", zap.Error(err))
		case !res.Allowed:
			observability.RecordAirdropRateLimited()
			return nil, &solana.RPCError{
				Code:    solana.CodeRateLimited,
				Message: "airdrop rate limit exceeded",
				Data:    map[string]int64{"retryAfterSeconds": int64(res.RetryAfter.Seconds())},
			}
		}
	}

	sig, err := s.ledger.Airdrop(to, lamports)
	if err != nil {
		return nil, &solana.RPCError{Code: solana.CodeInternalError, Message: err.Error()}
	}
	return sig.String(), nil
}

type sendConfig struct {
	Encoding      string `json:"encoding"`
	SkipPreflight bool   `json:"skipPreflight"`
}

func (s *Server) sendTransaction(_ context.Context, params []json.RawMessage) (interface{}, error) {
	var cfg sendConfig
	if err := configParam(params, 1, &cfg); err != nil {
		return nil, err
	}
	tx, err := decodeTransaction(params, cfg.Encoding)
	if err != nil {
		return nil, err
	}

	if !cfg.SkipPreflight {
		if err := tx.Verify(); err != nil {
			return nil, &solana.RPCError{Code: solana.CodeSigVerifyFailure, Message: "Transaction signature verification failure"}
		}
		if meta, err := s.ledger.SimulateTransaction(tx); err != nil {
			return nil, preflightError(simulationResult(meta, err))
		}
	}

	meta, err := s.ledger.SendTransaction(tx)
	if err != nil {
		var failed *svm.FailedTransactionError
		if errors.As(err, &failed) && failed.Executed {
			// Recorded; the status carries the error
			return failed.Meta.Signature.String(), nil
		}
		return nil, preflightError(simulationResult(meta, err))
	}
	return meta.Signature.String(), nil
}

type simulateConfig struct {
	Encoding               string `json:"encoding"`
	SigVerify              bool   `json:"sigVerify"`
	ReplaceRecentBlockhash bool   `json:"replaceRecentBlockhash"`
}

func (s *Server) simulateTransaction(_ context.Context, params []json.RawMessage) (interface{}, error) {
	var cfg simulateConfig
	if err := configParam(params, 1, &cfg); err != nil {
		return nil, err
	}
	if cfg.SigVerify && cfg.ReplaceRecentBlockhash {
		return nil, invalidParams("sigVerify may not be used with replaceRecentBlockhash")
	}
	tx, err := decodeTransaction(params, cfg.Encoding)
	if err != nil {
		return nil, err
	}

	if cfg.ReplaceRecentBlockhash {
		tx.Message.RecentBlockhash = s.ledger.LatestBlockhash()
	}
	if cfg.SigVerify {
		if err := tx.Verify(); err != nil {
			return s.withContext(&solana.SimulationResult{Err: "SignatureFailure"}), nil
		}
	}

	meta, err := s.ledger.SimulateTransaction(tx)
	return s.withContext(simulationResult(meta, err)), nil
}

// decodeTransaction reads the wire transaction in params[0].
func decodeTransaction(params []json.RawMessage, encoding string) (*solana.Transaction, error) {
	var encoded string
	if err := param(params, 0, "transaction", &encoded); err != nil {
		return nil, err
	}

	var raw []byte
	var err error
	switch encoding {
	case "", "base58":
		raw, err = base58.Decode(encoded)
	case "base64":
		raw, err = base64.StdEncoding.DecodeString(encoded)
	default:
		return nil, invalidParams("unsupported encoding %q", encoding)
	}
	if err != nil {
		return nil, invalidParams("invalid transaction encoding: %v", err)
	}

	tx, err := solana.DeserializeTransaction(raw)
	if err != nil {
		return nil, invalidParams("failed to deserialize transaction: %v", err)
	}
	return tx, nil
}

// simulationResult describes an execution outcome. Failed executions carry
// their metadata in the error.
func simulationResult(meta svm.TransactionMetadata, err error) *solana.SimulationResult {
	var failed *svm.FailedTransactionError
	if errors.As(err, &failed) {
		meta = failed.Meta
		err = failed.Err
	}
	logs := meta.Logs
	if logs == nil {
		logs = []string{}
	}
	return &solana.SimulationResult{
		Err:           svm.ErrorJSON(err),
		Logs:          logs,
		UnitsConsumed: meta.ComputeUnitsConsumed,
	}
}

func preflightError(res *solana.SimulationResult) *solana.RPCError {
	return &solana.RPCError{
		Code:    solana.CodeSendTxPreflightFail,
		Message: fmt.Sprintf("Transaction simulation failed: %v", describeErr(res.Err)),
		Data:    res,
	}
}

func describeErr(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
