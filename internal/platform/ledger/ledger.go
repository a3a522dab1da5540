// Package ledger anchors report digests to a Hedera consensus topic for
// tamper-evidence. Anchoring is best-effort: callers persist the report
// whether or not the topic submission succeeds, and a service configured
// without a topic id skips anchoring entirely.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// ErrNotConfigured is returned when ledger operator credentials are absent.
var ErrNotConfigured = errors.New("hedera credentials not configured")

// Anchor is the message submitted to the consensus topic.
type Anchor struct {
	PatientID  string    `json:"patientId"`
	ReportHash string    `json:"reportHash"`
	Timestamp  time.Time `json:"timestamp"`
}

// Anchorer submits an anchoring message and returns the ledger transaction
// id, or "" when anchoring is disabled.
type Anchorer interface {
	Submit(ctx context.Context, a Anchor) (string, error)
}

// NopAnchorer skips anchoring. Used when no topic id is configured.
type NopAnchorer struct{}

func (NopAnchorer) Submit(context.Context, Anchor) (string, error) { return "", nil }

// Config holds Hedera operator credentials and the target topic.
type Config struct {
	AccountID  string
	PrivateKey string
	TopicID    string
	Timeout    time.Duration
}

// HederaAnchorer submits topic messages to the Hedera testnet.
type HederaAnchorer struct {
	client  *hedera.Client
	topicID hedera.TopicID
	timeout time.Duration
}

// New builds an Anchorer from the given config. A missing topic id yields a
// NopAnchorer; missing operator credentials yield ErrNotConfigured.
func New(cfg Config) (Anchorer, error) {
	if cfg.TopicID == "" {
		return NopAnchorer{}, nil
	}
	if cfg.AccountID == "" || cfg.PrivateKey == "" {
		return nil, ErrNotConfigured
	}

	accountID, err := hedera.AccountIDFromString(cfg.AccountID)
	if err != nil {
		return nil, fmt.Errorf("parse hedera account id: %w", err)
	}
	privateKey, err := hedera.PrivateKeyFromString(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse hedera private key: %w", err)
	}
	topicID, err := hedera.TopicIDFromString(cfg.TopicID)
	if err != nil {
		return nil, fmt.Errorf("parse hedera topic id: %w", err)
	}

	client := hedera.ClientForTestnet()
	client.SetOperator(accountID, privateKey)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &HederaAnchorer{client: client, topicID: topicID, timeout: timeout}, nil
}

// Submit serializes the anchor as JSON and submits it as a topic message,
// bounded by the configured timeout.
func (h *HederaAnchorer) Submit(ctx context.Context, a Anchor) (string, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal anchor payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	type result struct {
		txID string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := hedera.NewTopicMessageSubmitTransaction().
			SetTopicID(h.topicID).
			SetMessage(payload).
			Execute(h.client)
		if err != nil {
			done <- result{err: fmt.Errorf("submit topic message: %w", err)}
			return
		}
		done <- result{txID: resp.TransactionID.String()}
	}()

	select {
	case r := <-done:
		return r.txID, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("anchor submission: %w", ctx.Err())
	}
}
