package nbi

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/internal/observability"
)

const tracerName = "github.com/signalsfoundry/vessel-systems/internal/nbi"

func spanName(service, method string) string {
	return "VesselAPI/" + service + "/" + method
}

// TracingUnaryServerInterceptor names the RPC span after the vessel API
// method and marks it failed with the gRPC code of a returned error. A
// server span is started when no stats handler created one.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		span := trace.SpanFromContext(ctx)
		owned := !span.SpanContext().IsValid()
		if owned {
			ctx, span = tracer.Start(ctx, spanName(service, method), trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
		} else {
			span.SetName(spanName(service, method))
		}

		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
			attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
		)
		if id := logging.RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		resp, err := handler(ctx, req)
		if err != nil {
			code := status.Code(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, code.String())
			span.SetAttributes(attribute.Int("rpc.grpc.status_code", int(code)))
		}
		return resp, err
	}
}

// startVesselSpan starts a child span for work on one vessel inside a
// handler. Finish it with endSpan.
func startVesselSpan(ctx context.Context, name string, vesselID int64, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := append([]attribute.KeyValue{attribute.Int64("vessel.id", vesselID)}, extra...)
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
