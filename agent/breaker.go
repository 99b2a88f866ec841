package agent

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker/v2"
)

const breakerMaxFailures uint32 = 5
const breakerTimeout = 30 * time.Second
const breakerInterval = 60 * time.Second

// BreakerProvider wraps a ChatProvider with a circuit breaker, so a
// dead or rate limited model endpoint fails fast instead of stacking
// up one minute timeouts behind the chat box.
type BreakerProvider struct {
	inner   ChatProvider
	breaker *gobreaker.CircuitBreaker[*ChatResponse]
}

func NewBreakerProvider(inner ChatProvider, logger *log.Logger) *BreakerProvider {
	breaker := gobreaker.NewCircuitBreaker[*ChatResponse](gobreaker.Settings{
		Name:        "chat-provider",
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("chat provider circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})

	return &BreakerProvider{inner: inner, breaker: breaker}
}

func (bp *BreakerProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return bp.breaker.Execute(func() (*ChatResponse, error) {
		return bp.inner.Chat(ctx, req)
	})
}
