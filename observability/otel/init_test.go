package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken,=skip, tenant=bloom ")
	if len(headers) != 2 {
		t.Fatalf("expected two headers, got %v", headers)
	}
	if headers["api-key"] != "abc" || headers["tenant"] != "bloom" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
}

func TestInitWithoutExportersIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "bloomd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	_, span := Tracer("ledger").Start(context.Background(), "probe")
	span.End()
}

func TestServiceResourceCarriesNamespace(t *testing.T) {
	res, err := serviceResource(Config{ServiceName: "bloom-indexer", ServiceVersion: "v1", Environment: "test"})
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	want := map[string]string{
		"service.name":           "bloom-indexer",
		"service.namespace":      "bloom",
		"service.version":        "v1",
		"deployment.environment": "test",
	}
	for _, kv := range res.Attributes() {
		if expected, ok := want[string(kv.Key)]; ok {
			if kv.Value.AsString() != expected {
				t.Fatalf("%s = %q, want %q", kv.Key, kv.Value.AsString(), expected)
			}
			delete(want, string(kv.Key))
		}
	}
	if len(want) != 0 {
		t.Fatalf("missing resource attributes %v", want)
	}
}
