package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newWatchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "watch [job]",
		Short: "Stream serving status changes until the supervisor goes away",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := ""
			if len(args) == 1 {
				service = args[0]
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()

			client := healthpb.NewHealthClient(conn)
			stream, err := client.Watch(ctx, &healthpb.HealthCheckRequest{Service: service})
			if err != nil {
				return err
			}
			for {
				msg, err := stream.Recv()
				if errors.Is(err, io.EOF) || grpcCode(err) == codes.Unavailable {
					return nil
				}
				if err != nil {
					return err
				}
				if asJSON {
					if err := printJSON(cmd.OutOrStdout(), msg); err != nil {
						return err
					}
					continue
				}
				printStatusLine(cmd.OutOrStdout(), service, msg.GetStatus())
			}
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print each update as JSON")
	return cmd
}
