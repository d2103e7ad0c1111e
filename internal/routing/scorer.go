package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/juspay/hyperswitch-sub035/pkg/config"
)

const fetchSuccessRateMethod = "/success_rate.SuccessRateCalculator/FetchSuccessRate"

// ScoreRequest asks the scorer to rank labels for one routing decision.
type ScoreRequest struct {
	ID     string   `json:"id"`
	Params string   `json:"params"`
	Labels []string `json:"labels"`
}

type LabelScore struct {
	Label string          `json:"label"`
	Score decimal.Decimal `json:"score"`
}

type scoreResponse struct {
	LabelsWithScore []LabelScore `json:"labels_with_score"`
}

// Scorer returns a success-rate score per label.
type Scorer interface {
	FetchSuccessRate(ctx context.Context, req ScoreRequest) ([]LabelScore, error)
}

// GRPCScorer calls a dynamic routing service over gRPC with a JSON codec.
type GRPCScorer struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewGRPCScorer returns nil when no scorer address is configured.
func NewGRPCScorer(cfg config.RoutingConfig, opts ...grpc.DialOption) (*GRPCScorer, error) {
	addr := strings.TrimSpace(cfg.ScorerAddr)
	if addr == "" {
		return nil, nil
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial scorer %s: %w", addr, err)
	}
	return &GRPCScorer{conn: conn, timeout: cfg.ScorerTimeout}, nil
}

func (s *GRPCScorer) FetchSuccessRate(ctx context.Context, req ScoreRequest) ([]LabelScore, error) {
	if s == nil || s.conn == nil {
		return nil, errors.New("scorer not configured")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	var resp scoreResponse
	if err := s.conn.Invoke(ctx, fetchSuccessRateMethod, &req, &resp); err != nil {
		return nil, fmt.Errorf("fetch success rate: %w", err)
	}
	return resp.LabelsWithScore, nil
}

func (s *GRPCScorer) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
