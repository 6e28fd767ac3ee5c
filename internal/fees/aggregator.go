package fees

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/metrics"
)

// ErrMixedCurrency is returned when the selected definitions are priced in
// more than one currency.
var ErrMixedCurrency = errors.New("membership types are priced in different currencies")

// Aggregator combines elected definitions into a per-frequency quote.
type Aggregator struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Quote groups defs by billing frequency. Within a group the base amounts and
// required additional fees are summed; optional fees are listed unsummed.
// Amounts of different frequencies are never added together. Callers must
// pass at most one definition per scope owner; Quote does not deduplicate.
func (a *Aggregator) Quote(defs []domain.MembershipTypeDefinition) (domain.FeeQuote, error) {
	defer a.metrics.ObserveQuote(time.Now())

	quote := domain.FeeQuote{PerFrequency: map[domain.Frequency]domain.FrequencyQuote{}}
	for i, def := range defs {
		currency := strings.ToUpper(strings.TrimSpace(def.Fee.Currency))
		switch {
		case i == 0:
			quote.Currency = currency
		case currency != quote.Currency:
			return domain.FeeQuote{}, fmt.Errorf("%w: %s and %s (%s)", ErrMixedCurrency, quote.Currency, currency, def.Name)
		}

		group, ok := quote.PerFrequency[def.Fee.Frequency]
		if !ok {
			group = domain.FrequencyQuote{Optional: []domain.OptionalFee{}}
		}
		group.Required = group.Required.Add(def.Fee.BaseAmount)
		for _, extra := range def.Fee.AdditionalFees {
			if extra.Required {
				group.Required = group.Required.Add(extra.Amount)
				continue
			}
			group.Optional = append(group.Optional, domain.OptionalFee{
				MembershipTypeID: def.ID,
				Name:             extra.Name,
				Amount:           extra.Amount,
				Description:      extra.Description,
			})
		}
		quote.PerFrequency[def.Fee.Frequency] = group
	}

	if len(quote.PerFrequency) > 1 {
		a.logger.Debug("quote spans several billing frequencies", "frequencies", len(quote.PerFrequency))
	}
	return quote, nil
}
