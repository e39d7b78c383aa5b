package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aaronromeo/fittrack/internal/llm/provider"
)

// FallbackReply is returned in place of model text whenever generation is unavailable.
const FallbackReply = "Hey! I'm having a bit of trouble connecting right now. What's up with your workout today? I can still help you out! 💪"

const DefaultTimeout = 30 * time.Second

var (
	requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_llm_requests_total",
			Help: "Gateway completions by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	latency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fittrack_llm_request_duration_seconds",
			Help:    "Gateway completion latency",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"provider"},
	)
)

// Gateway makes one bounded provider call per request and never returns empty text.
type Gateway struct {
	provider    provider.Provider
	logger      *slog.Logger
	timeout     time.Duration
	fallback    string
	temperature float64
	maxTokens   int
}

type Option func(*Gateway)

func WithProvider(p provider.Provider) Option {
	return func(g *Gateway) { g.provider = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithFallback(s string) Option {
	return func(g *Gateway) {
		if s != "" {
			g.fallback = s
		}
	}
}

// WithSampling sets temperature and output token limit; zero keeps provider defaults.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(g *Gateway) {
		g.temperature = temperature
		g.maxTokens = maxTokens
	}
}

func New(opts ...Option) *Gateway {
	g := &Gateway{
		logger:   slog.Default(),
		timeout:  DefaultTimeout,
		fallback: FallbackReply,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Provider name used for metrics and logs; "none" when unset.
func (g *Gateway) Provider() string {
	if g.provider == nil {
		return "none"
	}
	return g.provider.Name()
}

// Complete sends prompt as a single user turn.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	return g.do(ctx, provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: prompt}},
	})
}

// Chat sends a system prompt plus the prior turns, oldest first.
func (g *Gateway) Chat(ctx context.Context, system string, history []provider.Message) (string, error) {
	return g.do(ctx, provider.Request{System: system, Messages: history})
}

func (g *Gateway) do(ctx context.Context, req provider.Request) (string, error) {
	name := g.Provider()
	if g.provider == nil {
		return g.fail(ctx, name, provider.ErrMissingCredentials)
	}
	req.Temperature = g.temperature
	req.MaxTokens = g.maxTokens

	// Callers cannot abort an issued call; only the gateway deadline applies.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.provider.Complete(cctx, req)
	latency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err == nil && text == "" {
		err = provider.ErrNoCandidate
	}
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(err, context.DeadlineExceeded)
		}
		return g.fail(ctx, name, err)
	}
	requests.WithLabelValues(name, "ok").Inc()
	return text, nil
}

func (g *Gateway) fail(ctx context.Context, name string, err error) (string, error) {
	kind := classify(err)
	requests.WithLabelValues(name, string(kind)).Inc()
	g.logger.WarnContext(ctx, "llm completion unavailable",
		slog.String("provider", name),
		slog.String("kind", string(kind)),
		slog.Any("err", err),
	)
	return g.fallback, &UnavailableError{Provider: name, Kind: kind, Err: err}
}
