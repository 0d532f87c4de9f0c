package health

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type spiffeIdContextKey struct{}

func extractSpiffeIdFromContext(ctx context.Context) *string {
	if v := ctx.Value(spiffeIdContextKey{}); v != nil {
		if spiffeId, ok := v.(string); ok {
			return &spiffeId
		}
	}
	return nil
}

// extractSpiffeIdFromTls returns the trust domain of the first SPIFFE URI
// SAN of the client certificate, e.g. spiffe://ops -> "ops".
func extractSpiffeIdFromTls(ctx context.Context) *string {
	if v := extractSpiffeIdFromContext(ctx); v != nil {
		return v
	}

	p, ok := peer.FromContext(ctx)
	if !ok || p == nil {
		return nil
	}
	ti, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return nil
	}
	if len(ti.State.PeerCertificates) == 0 || ti.State.PeerCertificates[0] == nil {
		return nil
	}

	for _, uri := range ti.State.PeerCertificates[0].URIs {
		if uri != nil && uri.Scheme == "spiffe" {
			return &uri.Host
		}
	}
	return nil
}

func injectSpiffeId(ctx context.Context, spiffeId string) context.Context {
	return context.WithValue(ctx, spiffeIdContextKey{}, spiffeId)
}

func requireSpiffeIdUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		spiffeId := extractSpiffeIdFromTls(ctx)
		if spiffeId == nil {
			return nil, status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
		}
		logger.Debug("health: call", "client", *spiffeId, "method", info.FullMethod)
		return handler(injectSpiffeId(ctx, *spiffeId), req)
	}
}

type streamWithCtx struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *streamWithCtx) Context() context.Context { return s.ctx }

func requireSpiffeIdStream(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		spiffeId := extractSpiffeIdFromTls(ctx)
		if spiffeId == nil {
			return status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
		}
		logger.Debug("health: stream", "client", *spiffeId, "method", info.FullMethod)
		return handler(srv, &streamWithCtx{ServerStream: ss, ctx: injectSpiffeId(ctx, *spiffeId)})
	}
}
