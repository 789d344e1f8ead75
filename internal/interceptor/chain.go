// File: internal/interceptor/chain.go

// Package interceptor provides the middleware-chain framework used at every
// intercept point of the agent engine. A chain is built once from a base
// handler plus an ordered interceptor list; each interceptor receives the
// request and a proceed continuation and may short-circuit, rewrite the
// request or response, or invoke proceed any number of times.
package interceptor

import "context"

// Handler processes one request of an intercept point.
type Handler[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Interceptor wraps a handler at one intercept point.
type Interceptor[Req, Resp any] interface {
	Intercept(ctx context.Context, req Req, proceed Handler[Req, Resp]) (Resp, error)
}

// Func adapts a plain function to the Interceptor interface.
type Func[Req, Resp any] func(ctx context.Context, req Req, proceed Handler[Req, Resp]) (Resp, error)

func (f Func[Req, Resp]) Intercept(ctx context.Context, req Req, proceed Handler[Req, Resp]) (Resp, error) {
	return f(ctx, req, proceed)
}

// BuildChain folds the interceptors around the base handler. Interceptors
// registered later wrap earlier ones: the last element of the slice is the
// outermost layer, observing the request first and the response last.
func BuildChain[Req, Resp any](base Handler[Req, Resp], interceptors []Interceptor[Req, Resp]) Handler[Req, Resp] {
	chain := base
	for _, ic := range interceptors {
		ic := ic
		inner := chain
		chain = func(ctx context.Context, req Req) (Resp, error) {
			return ic.Intercept(ctx, req, inner)
		}
	}
	return chain
}
