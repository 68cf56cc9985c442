// Package queue defines the interface for exchanging stage invocations.
// The abstraction keeps the pipeline independent of the transport: GCP
// Pub/Sub in deployment, an in-memory channel in tests and single-process
// runs.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openhire/jobradar/internal/domain"
)

// Invocation asks the pipeline to start one stage run.
type Invocation struct {
	Stage  domain.Stage       `json:"stage"`
	Params domain.StageParams `json:"params"`
}

// Encode serializes the invocation for transport.
func (i Invocation) Encode() ([]byte, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return nil, fmt.Errorf("encode invocation: %w", err)
	}
	return data, nil
}

// DecodeInvocation parses a transported invocation.
func DecodeInvocation(data []byte) (Invocation, error) {
	var inv Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return Invocation{}, fmt.Errorf("decode invocation: %w", err)
	}
	if inv.Stage == "" {
		return Invocation{}, fmt.Errorf("invocation has no stage")
	}
	return inv, nil
}

// Provider is the transport for stage invocations.
type Provider interface {
	// Publish sends one invocation. Delivery is at-least-once.
	Publish(ctx context.Context, inv Invocation) error
	// Receive blocks, invoking handle for each delivered invocation until
	// the context ends.
	Receive(ctx context.Context, handle func(context.Context, Invocation)) error
	// Close cleans up client connections and resources.
	Close() error
}

// NoOpProvider drops every invocation. Useful when stage starts come only
// from the HTTP API and the scheduler.
type NoOpProvider struct{}

// Publish implements Provider.
func (NoOpProvider) Publish(context.Context, Invocation) error { return nil }

// Receive implements Provider; it blocks until the context ends.
func (NoOpProvider) Receive(ctx context.Context, _ func(context.Context, Invocation)) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close implements Provider.
func (NoOpProvider) Close() error { return nil }
