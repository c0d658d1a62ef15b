package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/rassdread/homecheff-app-sub014/pkg/config"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

// Mode is the Stripe key family a client runs against.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

var (
	errAPIKeyRequired = errors.New("stripe api key is required")
	errUnknownMode    = fmt.Errorf("stripe environment must be %q or %q", ModeTest, ModeLive)
)

// TransferCreator is the slice of the Stripe API used for seller payouts.
type TransferCreator interface {
	Create(ctx context.Context, params *stripe.TransferCreateParams) (*stripe.Transfer, error)
}

// Client holds the Connect API handle used to move seller money.
type Client struct {
	api  *stripe.Client
	mode Mode
}

// NewClient refuses keys that do not belong to the configured mode so a live
// key never runs in a test deployment or the other way round.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode, err := parseMode(cfg.Env)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	if keyMode, ok := modeOfKey(key); !ok || keyMode != mode {
		return nil, fmt.Errorf("stripe %s mode needs a %s secret or restricted key", mode, mode)
	}

	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(int64(cfg.MaxNetworkRetries)),
		LeveledLogger:     leveledLogger{logg: logg},
	})
	client := &Client{
		api:  stripe.NewClient(key, stripe.WithBackends(backends)),
		mode: mode,
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_mode", string(mode)), "stripe client initialized")
	}
	return client, nil
}

func (c *Client) Mode() Mode {
	if c == nil {
		return ""
	}
	return c.mode
}

func (c *Client) Transfers() TransferCreator {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.V1Transfers
}

func parseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeTest:
		return ModeTest, nil
	case ModeLive:
		return ModeLive, nil
	}
	return "", errUnknownMode
}

// modeOfKey reads the mode from the key prefix, e.g. sk_test_ or rk_live_.
func modeOfKey(key string) (Mode, bool) {
	for _, kind := range []string{"sk_", "rk_"} {
		rest, found := strings.CutPrefix(key, kind)
		if !found {
			continue
		}
		switch {
		case strings.HasPrefix(rest, "test_"):
			return ModeTest, true
		case strings.HasPrefix(rest, "live_"):
			return ModeLive, true
		}
	}
	return "", false
}
