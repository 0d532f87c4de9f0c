package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

func displayName(service string) string {
	if service == "" {
		return "(supervisor)"
	}
	return service
}

func stateName(st healthpb.HealthCheckResponse_ServingStatus) string {
	switch st {
	case healthpb.HealthCheckResponse_SERVING:
		return "Serving"
	case healthpb.HealthCheckResponse_NOT_SERVING:
		return "Not serving"
	case healthpb.HealthCheckResponse_SERVICE_UNKNOWN:
		return "Unknown job"
	default:
		return "Unknown"
	}
}

func printStatusTable(w io.Writer, service string, st healthpb.HealthCheckResponse_ServingStatus) {
	name := displayName(service)
	state := stateName(st)

	nameW := max(4, len(name))
	stateW := max(5, len(state))

	sep := fmt.Sprintf("+-%s-+-%s-+\n", strings.Repeat("-", nameW), strings.Repeat("-", stateW))
	fmt.Fprint(w, sep)
	fmt.Fprintf(w, "| %s | %s |\n", pad("NAME", nameW), pad("STATE", stateW))
	fmt.Fprint(w, sep)
	fmt.Fprintf(w, "| %s | %s |\n", pad(name, nameW), pad(state, stateW))
	fmt.Fprint(w, sep)
}

func printStatusLine(w io.Writer, service string, st healthpb.HealthCheckResponse_ServingStatus) {
	fmt.Fprintf(w, "%s %s %s\n", time.Now().Format(time.RFC3339), displayName(service), stateName(st))
}

func printJSON(w io.Writer, m proto.Message) error {
	b, err := protojson.Marshal(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
