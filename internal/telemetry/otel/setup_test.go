package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	providers, err := NewProviders(ctx, "", "test-service", false)
	if err != nil {
		t.Fatalf("NewProviders empty endpoint: %v", err)
	}
	if providers == nil {
		t.Fatal("providers should not be nil")
	}
	if providers.TracerProvider == nil {
		t.Error("TracerProvider should not be nil")
	}
	if providers.MeterProvider == nil {
		t.Error("MeterProvider should not be nil")
	}
	if providers.LoggerProvider == nil {
		t.Error("LoggerProvider should not be nil")
	}
	if providers.Shutdown == nil {
		t.Error("Shutdown should not be nil")
	}

	if err := providers.Shutdown(ctx); err != nil {
		t.Errorf("shutdown should be no-op for empty endpoint, got error: %v", err)
	}
}

func TestNewProviders_WhitespaceEndpoint(t *testing.T) {
	providers, err := NewProviders(context.Background(), "   ", "test-service", false)
	if err != nil {
		t.Fatalf("NewProviders whitespace endpoint: %v", err)
	}
	if providers == nil {
		t.Fatal("providers should not be nil")
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	testCases := []struct {
		name     string
		endpoint string
	}{
		{"malformed URL", "http://[invalid"},
		{"missing host", "http://"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewProviders(context.Background(), tc.endpoint, "test-service", false); err == nil {
				t.Errorf("NewProviders(%q) should fail", tc.endpoint)
			}
		})
	}
}

func TestSetGlobal(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	providers := &Providers{
		TracerProvider: sdktrace.NewTracerProvider(),
	}
	providers.SetGlobal()

	if otel.GetTracerProvider() != providers.TracerProvider {
		t.Error("SetGlobal should install the tracer provider")
	}
}
