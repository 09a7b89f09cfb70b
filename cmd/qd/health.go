package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/quorum/internal/client"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the quorum service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")

		status, err := quorumClient.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		out := map[string]string{"status": status}

		if grpcAddr != "" {
			grpcStatus, err := checkGRPCHealth(cmd.Context(), grpcAddr)
			if err != nil {
				return err
			}
			out["grpc"] = grpcStatus
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", status)
			if s, ok := out["grpc"]; ok {
				fmt.Fprintf(cmd.OutOrStdout(), "gRPC:   %s\n", s)
			}
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		if s, ok := out["grpc"]; ok && s != "SERVING" {
			return fmt.Errorf("gRPC unhealthy: %s", s)
		}
		return nil
	},
}

func checkGRPCHealth(ctx context.Context, addr string) (string, error) {
	hc, err := client.NewGRPCHealthClient(addr, authToken)
	if err != nil {
		return "", err
	}
	defer hc.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return hc.Check(ctx, "")
}

func init() {
	healthCmd.Flags().String("grpc", "", "also probe the gRPC health service at this address")
}
