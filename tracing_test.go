package automation

import (
	"context"
	"errors"
	"testing"
)

func TestNoopTracerStartReturnsUsableSpan(t *testing.T) {
	var tracer Tracer = NoopTracer{}
	ctx := context.Background()
	gotCtx, span := tracer.Start(ctx, "anything", Attr("k", "v"))
	if gotCtx != ctx {
		t.Fatal("NoopTracer.Start should pass the context through unchanged")
	}
	if span == nil {
		t.Fatal("NoopTracer.Start should never return a nil span")
	}
}

func TestNoopSpanMethodsAreSafeNoops(t *testing.T) {
	_, span := (NoopTracer{}).Start(context.Background(), "op")
	span.SetAttr(Attr("a", 1))
	span.Event("progress", Attr("b", 2))
	span.Error(errors.New("boom"))
	span.End()
}

func TestAttrConstructsKeyValuePair(t *testing.T) {
	a := Attr("name", "value")
	if a.Key != "name" || a.Value != "value" {
		t.Fatalf("Attr = %+v, want {name value}", a)
	}
}
