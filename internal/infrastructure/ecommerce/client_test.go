package ecommerce

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopsync/backend/internal/domain/integration"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestAPIClient_TracesCalls(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantCode    codes.Code
		wantErrKind integration.FailureKind
	}{
		{name: "success", status: http.StatusOK, wantCode: codes.Ok},
		{name: "rate limited", status: http.StatusTooManyRequests, wantCode: codes.Error, wantErrKind: integration.FailureTransient},
		{name: "unauthorized", status: http.StatusUnauthorized, wantCode: codes.Error, wantErrKind: integration.FailureAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := recordSpans(t)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				w.WriteHeader(tt.status)
				io.WriteString(w, `{}`)
			}))
			defer server.Close()

			client := newAPIClient(integration.PlatformCodeShopee, 5)
			req, err := http.NewRequest(http.MethodGet, server.URL, nil)
			require.NoError(t, err)

			body, err := client.do(context.Background(), "fetch_orders", req)
			if tt.wantCode == codes.Ok {
				require.NoError(t, err)
				assert.Equal(t, "{}", string(body))
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrKind, integration.KindOf(err))
			}

			spans := sr.Ended()
			require.Len(t, spans, 1)
			span := spans[0]
			assert.Equal(t, "ecommerce.fetch_orders", span.Name())
			assert.Equal(t, trace.SpanKindClient, span.SpanKind())
			assert.Equal(t, tt.wantCode, span.Status().Code)

			attrs := map[string]interface{}{}
			for _, kv := range span.Attributes() {
				attrs[string(kv.Key)] = kv.Value.AsInterface()
			}
			assert.Equal(t, "shopee", attrs["platform"])
			assert.Equal(t, "fetch_orders", attrs["operation"])
			assert.Equal(t, int64(tt.status), attrs["http.status_code"])
		})
	}
}
