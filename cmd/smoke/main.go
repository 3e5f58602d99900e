package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"continuity.org/internal/bia"
	"continuity.org/internal/httpapi"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "smoke test failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr    string
		timeout time.Duration
	)
	flagSet := pflag.NewFlagSet("smoke", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", envOr("CONTINUITY_GRPC_ADDR", "localhost:9090"), "gRPC address of the API")
	flagSet.DurationVar(&timeout, "timeout", 5*time.Second, "overall deadline")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health: %s", health.GetStatus())
	}

	client := httpapi.NewAssessmentClient(conn)
	for _, p := range bia.Priorities {
		in, err := structpb.NewStruct(map[string]any{
			"priority": string(p),
			"responses": []any{
				map[string]any{"questionId": "downtime_tolerance", "value": 72},
				map[string]any{"questionId": "manual_workaround", "value": 48},
				map[string]any{"questionId": "dependency_recovery", "value": 24},
			},
		})
		if err != nil {
			return err
		}
		out, err := client.DeriveMetrics(ctx, in)
		if err != nil {
			return fmt.Errorf("derive %s: %w", p, err)
		}
		base, err := bia.BaselineFor(p)
		if err != nil {
			return err
		}
		m := out.AsMap()
		rto, _ := m["rto"].(float64)
		mtd, _ := m["mtd"].(float64)
		if rto < float64(base.RTO) || rto > float64(2*base.RTO) {
			return fmt.Errorf("%s: rto %v outside [%d, %d]", p, rto, base.RTO, 2*base.RTO)
		}
		if mtd != math.Ceil(rto*1.5) {
			return fmt.Errorf("%s: mtd %v is not ceil(1.5 x %v)", p, mtd, rto)
		}
	}

	in, err := structpb.NewStruct(map[string]any{
		"answers": map[string]any{"fin_revenue_loss": "severe"},
	})
	if err != nil {
		return err
	}
	scores, err := client.ScoreImpacts(ctx, in)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	if got := scores.AsMap()["financial"]; got != float64(33) {
		return fmt.Errorf("financial score %v, want 33", got)
	}

	fmt.Printf("continuity-api smoke test passed against %s\n", addr)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
