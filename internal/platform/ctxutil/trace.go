package ctxutil

import "context"

type traceDataKey struct{}

// TraceData is the per-request correlation state the HTTP layer attaches to
// the request context.
type TraceData struct {
	TraceID   string
	RequestID string
	// EntityID is the :id route parameter, when the route has one.
	EntityID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

// RequestID returns the request id attached by the HTTP layer, or "".
func RequestID(ctx context.Context) string {
	if td := GetTraceData(ctx); td != nil {
		return td.RequestID
	}
	return ""
}

// Fields flattens td into logger key/values, skipping empty entries.
func (td *TraceData) Fields() []interface{} {
	if td == nil {
		return nil
	}
	var out []interface{}
	for _, kv := range [][2]string{
		{"trace_id", td.TraceID},
		{"request_id", td.RequestID},
		{"entity_id", td.EntityID},
	} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}
