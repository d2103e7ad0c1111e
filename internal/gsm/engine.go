// Package gsm decides how to react to a connector failure using the gateway
// status map and, on Retry, drives retries against the remaining candidates.
package gsm

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/internal/storage"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/metrics"
)

// DefaultSubFlow is the sub flow every rule is recorded under.
const DefaultSubFlow = "sub_flow"

// RuleStore looks up gateway status map rules. A nil rule means none is configured.
type RuleStore interface {
	Find(ctx context.Context, key storage.GSMKey) (*models.GatewayStatusMap, error)
}

// ConfigStore reads merchant scoped switches from the configs table.
type ConfigStore interface {
	Find(ctx context.Context, key string) (string, bool, error)
}

// RetryFunc runs one more attempt against candidate and returns its outcome.
type RetryFunc func(ctx context.Context, candidate routing.Candidate) (connectors.Result, error)

type Input struct {
	MerchantID string
	Flow       enums.PaymentFlow
}

// Outcome is the result that stands after the retry loop.
type Outcome struct {
	Result    connectors.Result
	Decision  enums.GsmDecision
	Retries   int
	Exhausted bool
}

type EngineParams struct {
	Rules   RuleStore
	Configs ConfigStore
	Config  config.GSMConfig
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics
}

type Engine struct {
	rules          RuleStore
	configs        ConfigStore
	defaultEnabled bool
	logg           *logger.Logger
	metrics        *metrics.PaymentMetrics
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Rules == nil {
		return nil, errors.New("gsm rule store required")
	}
	if params.Configs == nil {
		return nil, errors.New("config store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Engine{
		rules:          params.Rules,
		configs:        params.Configs,
		defaultEnabled: params.Config.DefaultEnabled,
		logg:           params.Logger,
		metrics:        params.Metrics,
	}, nil
}

func MaxRetriesKey(merchantID string) string {
	return "max_auto_retries_enabled_" + merchantID
}

func ShouldCallGSMKey(merchantID string) string {
	return "should_call_gsm_" + merchantID
}

// DoGSMActions consults the gateway status map for a failed result and retries
// while the rule says Retry. Each retry consumes one candidate and one unit of
// the merchant's budget, so the loop always terminates.
func (e *Engine) DoGSMActions(ctx context.Context, in Input, result connectors.Result, candidates []routing.Candidate, retry RetryFunc) (Outcome, error) {
	out := Outcome{Result: result, Decision: enums.GsmDecisionDoDefault}
	if !result.Failed() {
		return out, nil
	}
	enabled, err := e.shouldCallGSM(ctx, in.MerchantID)
	if err != nil {
		return out, err
	}
	if !enabled {
		return out, nil
	}
	budget, err := e.maxRetries(ctx, in.MerchantID)
	if err != nil {
		return out, err
	}

	remaining := append([]routing.Candidate(nil), candidates...)
	for out.Result.Failed() {
		decision, err := e.decide(ctx, in, out.Result)
		if err != nil {
			return out, err
		}
		out.Decision = decision

		switch decision {
		case enums.GsmDecisionRetry:
			if budget <= 0 || len(remaining) == 0 {
				out.Exhausted = true
				e.metrics.IncGSMExhausted(in.MerchantID)
				e.logg.Info(e.logg.WithFields(ctx, map[string]any{
					"retries":    out.Retries,
					"candidates": len(remaining),
				}), "gsm retries exhausted")
				return out, nil
			}
			budget--
			next := remaining[0]
			remaining = remaining[1:]
			e.metrics.IncGSMRetry(next.Connector)
			e.logg.Info(e.logg.WithFields(ctx, map[string]any{
				"from_connector": out.Result.Connector,
				"to_connector":   next.Connector,
				"error_code":     out.Result.Error.Code,
			}), "gsm retrying payment")

			res, err := retry(ctx, next)
			if err != nil {
				return out, err
			}
			out.Result = res
			out.Retries++
		case enums.GsmDecisionRequeue:
			return out, pkgerrors.New(pkgerrors.CodeNotImpl, "requeue is not implemented")
		default:
			return out, nil
		}
	}
	return out, nil
}

// decide returns the configured decision for a failed result. Unknown errors and
// malformed rules fall back to DoDefault.
func (e *Engine) decide(ctx context.Context, in Input, result connectors.Result) (enums.GsmDecision, error) {
	rule, err := e.rules.Find(ctx, storage.GSMKey{
		Connector: result.Connector,
		Flow:      in.Flow.String(),
		SubFlow:   DefaultSubFlow,
		Code:      result.Error.Code,
		Message:   result.Error.Message,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "gsm lookup failed")
	}
	if rule == nil {
		return enums.GsmDecisionDoDefault, nil
	}
	decision, err := enums.ParseGsmDecision(strings.TrimSpace(rule.Decision))
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "decision", rule.Decision), "invalid gsm decision, using do_default")
		return enums.GsmDecisionDoDefault, nil
	}
	return decision, nil
}

func (e *Engine) shouldCallGSM(ctx context.Context, merchantID string) (bool, error) {
	raw, ok, err := e.configs.Find(ctx, ShouldCallGSMKey(merchantID))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read gsm flag")
	}
	if !ok {
		return e.defaultEnabled, nil
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return e.defaultEnabled, nil
	}
	return enabled, nil
}

func (e *Engine) maxRetries(ctx context.Context, merchantID string) (int, error) {
	raw, ok, err := e.configs.Find(ctx, MaxRetriesKey(merchantID))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read retry budget")
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		e.logg.Warn(e.logg.WithField(ctx, "value", raw), "invalid retry budget, retries disabled")
		return 0, nil
	}
	return n, nil
}
