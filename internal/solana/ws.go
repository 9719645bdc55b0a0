package solana

import "context"

// WSClient defines the WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to transaction logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs of transactions that reference any of these keys.
	// Empty means all transactions.
	Mentions []string
}

// Matches reports whether a transaction touching keys passes the filter.
func (f LogsFilter) Matches(keys []string) bool {
	if len(f.Mentions) == 0 {
		return true
	}
	for _, m := range f.Mentions {
		for _, k := range keys {
			if m == k {
				return true
			}
		}
	}
	return false
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      uint64
	Logs      []string
	Err       interface{}
}

// WSNotification is a server push for a subscription.
type WSNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *WSNotificationParams `json:"params"`
}

// WSNotificationParams wraps a notification payload with its subscription ID.
type WSNotificationParams struct {
	Subscription uint64       `json:"subscription"`
	Result       WSLogsResult `json:"result"`
}

// WSLogsResult is the logsNotification result.
type WSLogsResult struct {
	Context *RPCContext `json:"context"`
	Value   LogsValue   `json:"value"`
}

// LogsValue is the per-transaction body of a logsNotification.
type LogsValue struct {
	Signature string      `json:"signature"`
	Err       interface{} `json:"err"`
	Logs      []string    `json:"logs"`
}

// NewLogsNotification builds the wire message for a notification.
func NewLogsNotification(subID uint64, n LogNotification) WSNotification {
	return WSNotification{
		JSONRPC: "2.0",
		Method:  "logsNotification",
		Params: &WSNotificationParams{
			Subscription: subID,
			Result: WSLogsResult{
				Context: &RPCContext{Slot: n.Slot},
				Value: LogsValue{
					Signature: n.Signature,
					Err:       n.Err,
					Logs:      n.Logs,
				},
			},
		},
	}
}
