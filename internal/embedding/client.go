// Package embedding converts text into fixed-dimension vectors via an
// external provider, with batching and strict validation.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Provider is the transport to an embedding model. Implementations must
// return one vector per input text, in input order.
type Provider interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderError wraps a provider failure with the 1-based batch number for
// diagnosis. A single failed batch aborts the whole operation; no partial
// result is ever returned.
type ProviderError struct {
	Batch int
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider failed on batch %d: %v", e.Batch, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DimensionError reports a vector whose dimensionality disagrees with the
// configured one. Vectors are never truncated or padded.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// Client batches embedding requests against a Provider.
type Client struct {
	provider  Provider
	dims      int
	batchSize int
	limiter   *rate.Limiter
	batches   prometheus.Counter
	log       zerolog.Logger
}

// Options configures a Client.
type Options struct {
	// Dimensions is the required vector dimensionality. Mandatory.
	Dimensions int
	// BatchSize caps texts per provider call. Defaults to 100.
	BatchSize int
	// BatchInterval is the minimum pause between provider calls.
	// Defaults to 100ms.
	BatchInterval time.Duration
	// BatchCounter, when set, is incremented once per provider call.
	BatchCounter prometheus.Counter
	Logger       zerolog.Logger
}

// NewClient creates a Client. Configuration is validated here so a
// misconfigured client fails at startup, not on first use.
func NewClient(provider Provider, opts Options) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if opts.Dimensions < 1 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", opts.Dimensions)
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 100
	}
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.BatchInterval == 0 {
		opts.BatchInterval = 100 * time.Millisecond
	}

	return &Client{
		provider:  provider,
		dims:      opts.Dimensions,
		batchSize: opts.BatchSize,
		limiter:   rate.NewLimiter(rate.Every(opts.BatchInterval), 1),
		batches:   opts.BatchCounter,
		log:       opts.Logger,
	}, nil
}

// Dimensions returns the configured vector dimensionality.
func (c *Client) Dimensions() int {
	return c.dims
}

// Embed converts a single text into a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts texts into vectors, one per input in input order.
// Texts are sent in sequential batches of at most the configured batch
// size, paced by the rate limiter; batch N+1 waits for batch N.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	totalBatches := (len(texts) + c.batchSize - 1) / c.batchSize
	vectors := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]
		batchNum := i/c.batchSize + 1

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{Batch: batchNum, Err: err}
		}

		c.log.Debug().
			Int("batch", batchNum).
			Int("batches", totalBatches).
			Int("size", len(batch)).
			Msg("embedding batch")

		result, err := c.provider.CreateEmbeddings(ctx, batch)
		if c.batches != nil {
			c.batches.Inc()
		}
		if err != nil {
			return nil, &ProviderError{Batch: batchNum, Err: err}
		}
		if len(result) != len(batch) {
			return nil, &ProviderError{
				Batch: batchNum,
				Err:   fmt.Errorf("provider returned %d vectors for %d texts", len(result), len(batch)),
			}
		}
		for _, vec := range result {
			if len(vec) != c.dims {
				return nil, &DimensionError{Want: c.dims, Got: len(vec)}
			}
		}

		vectors = append(vectors, result...)
	}

	return vectors, nil
}
