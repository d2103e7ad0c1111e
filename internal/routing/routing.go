package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

// CallKind says whether and how a flow calls a connector.
type CallKind int

const (
	// Skip makes no outbound call.
	Skip CallKind = iota
	// PreDetermined calls the connector already bound to the attempt.
	PreDetermined
	// Retryable calls the first candidate and keeps the rest for GSM retries.
	Retryable
)

func (k CallKind) String() string {
	switch k {
	case PreDetermined:
		return "pre_determined"
	case Retryable:
		return "retryable"
	default:
		return "skip"
	}
}

// Candidate is one connector an attempt may be routed to.
type Candidate struct {
	Connector           string
	MerchantConnectorID string
	Score               decimal.Decimal
}

func (c Candidate) label() string {
	return c.Connector + ":" + c.MerchantConnectorID
}

// ConnectorCallType is the routing decision for one pipeline run.
type ConnectorCallType struct {
	Kind       CallKind
	Connector  Candidate
	Candidates []Candidate
}

func SkipCall() ConnectorCallType {
	return ConnectorCallType{Kind: Skip}
}

func PreDeterminedCall(connector, mcaID string) ConnectorCallType {
	return ConnectorCallType{Kind: PreDetermined, Connector: Candidate{Connector: connector, MerchantConnectorID: mcaID}}
}

// RetryableCall uses candidates[0] first; candidates must be non-empty.
func RetryableCall(candidates []Candidate) ConnectorCallType {
	return ConnectorCallType{Kind: Retryable, Connector: candidates[0], Candidates: candidates[1:]}
}

// ConnectorAccounts lists a profile's enabled connector accounts in configured order.
type ConnectorAccounts interface {
	ListEnabledConnectorAccounts(ctx context.Context, merchantID, profileID string) ([]models.MerchantConnectorAccount, error)
}

// ErrNoEligibleConnector is returned when a profile has no enabled connector account.
var ErrNoEligibleConnector = errors.New("no eligible connector")

type Router struct {
	accounts ConnectorAccounts
	scorer   Scorer
	logg     *logger.Logger
}

// NewRouter builds a router. scorer may be nil, in which case configured order is used.
func NewRouter(accounts ConnectorAccounts, scorer Scorer, logg *logger.Logger) *Router {
	return &Router{accounts: accounts, scorer: scorer, logg: logg}
}

// Candidates returns eligible connectors ordered by score, best first. Ties and
// scorer failures keep the configured priority order.
func (r *Router) Candidates(ctx context.Context, merchantID, profileID, paymentID string) ([]Candidate, error) {
	accounts, err := r.accounts.ListEnabledConnectorAccounts(ctx, merchantID, profileID)
	if err != nil {
		return nil, fmt.Errorf("list connector accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoEligibleConnector
	}
	candidates := make([]Candidate, 0, len(accounts))
	for _, mca := range accounts {
		candidates = append(candidates, Candidate{Connector: mca.ConnectorName, MerchantConnectorID: mca.MerchantConnectorID})
	}
	if r.scorer == nil || len(candidates) == 1 {
		return candidates, nil
	}

	labels := make([]string, len(candidates))
	for i, c := range candidates {
		labels[i] = c.label()
	}
	scores, err := r.scorer.FetchSuccessRate(ctx, ScoreRequest{ID: profileID, Params: paymentID, Labels: labels})
	if err != nil {
		if r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "success rate scorer unavailable, using configured order")
		}
		return candidates, nil
	}
	byLabel := make(map[string]decimal.Decimal, len(scores))
	for _, s := range scores {
		byLabel[s.Label] = s.Score
	}
	for i := range candidates {
		candidates[i].Score = byLabel[candidates[i].label()]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score.GreaterThan(candidates[j].Score)
	})
	return candidates, nil
}
