package runtime

import (
	"context"

	"github.com/salespulse/lib-dbguard/dbguard/log"
)

// SafeGo runs fn in a goroutine guarded by the given panic policy.
func SafeGo(logger log.Logger, name string, policy PanicPolicy, fn func()) {
	go func() {
		defer RecoverWithPolicyAndContext(context.Background(), logger, "", name, policy)

		fn()
	}()
}

// SafeGoWithContextAndComponent runs fn(ctx) in a goroutine. A panic is
// logged, counted under component/name and added to the span in ctx.
//
//	runtime.SafeGoWithContextAndComponent(ctx, logger, "pool", "maintain", runtime.KeepRunning,
//		func(ctx context.Context) { p.maintain(ctx) })
func SafeGoWithContextAndComponent(
	ctx context.Context,
	logger log.Logger,
	component, name string,
	policy PanicPolicy,
	fn func(context.Context),
) {
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		defer RecoverWithPolicyAndContext(ctx, logger, component, name, policy)

		fn(ctx)
	}()
}
