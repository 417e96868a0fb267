package slogutil

import (
	"context"
	"log/slog"
	"maps"
)

type attrsKey struct{}

// With returns a context carrying the key-value pairs. Records logged with
// a handler from WrapHandler get them appended. Later keys replace earlier
// ones.
func With(ctx context.Context, kvargs ...any) context.Context {
	if len(kvargs) == 0 {
		return ctx
	}

	var r slog.Record
	r.Add(kvargs...)

	attrs := fromContext(ctx)
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a
		return true
	})

	return context.WithValue(ctx, attrsKey{}, attrs)
}

// Attrs returns the attributes carried by ctx.
func Attrs(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(attrsKey{}).(map[string]slog.Attr)
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a)
	}
	return out
}

func fromContext(ctx context.Context) map[string]slog.Attr {
	attrs, ok := ctx.Value(attrsKey{}).(map[string]slog.Attr)
	if !ok {
		return make(map[string]slog.Attr)
	}
	return maps.Clone(attrs)
}

type contextHook struct{}

func (contextHook) Run(ctx context.Context, r *slog.Record) {
	if ctx == nil {
		return
	}
	r.AddAttrs(Attrs(ctx)...)
}
