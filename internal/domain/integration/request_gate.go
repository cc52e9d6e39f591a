package integration

import "context"

// RequestGate meters the individual HTTP requests behind a port call. A
// single FetchProducts may page through many requests; each one is admitted
// before it is sent and recorded once it has been attempted.
type RequestGate interface {
	// Admit returns an error when the request must not be sent
	Admit(ctx context.Context, platform PlatformCode) error
	// Record counts an attempted request, successful or not
	Record(ctx context.Context, platform PlatformCode)
}

type requestGateKey struct{}

// WithRequestGate returns a context whose platform requests pass through gate
func WithRequestGate(ctx context.Context, gate RequestGate) context.Context {
	return context.WithValue(ctx, requestGateKey{}, gate)
}

// MeterRequest admits one outgoing request through the gate carried by ctx.
// Adapters call it before every request and call done after the attempt.
// Without a gate every request is admitted.
func MeterRequest(ctx context.Context, platform PlatformCode) (done func(), err error) {
	gate, ok := ctx.Value(requestGateKey{}).(RequestGate)
	if !ok || gate == nil {
		return func() {}, nil
	}
	if err := gate.Admit(ctx, platform); err != nil {
		return nil, err
	}
	return func() {
		gate.Record(context.WithoutCancel(ctx), platform)
	}, nil
}
