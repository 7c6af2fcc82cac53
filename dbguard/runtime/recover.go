package runtime

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/salespulse/lib-dbguard/dbguard/log"
)

// RecoverAndLogWithContext recovers a panic, logs it with its stack and
// records it on the span and panic counter. Use it in a defer.
func RecoverAndLogWithContext(ctx context.Context, logger log.Logger, component, name string) {
	if r := recover(); r != nil {
		handlePanic(ctx, logger, r, debug.Stack(), component, name)
	}
}

// RecoverWithPolicyAndContext is RecoverAndLogWithContext with a choice of
// re-panicking afterwards.
func RecoverWithPolicyAndContext(ctx context.Context, logger log.Logger, component, name string, policy PanicPolicy) {
	if r := recover(); r != nil {
		handlePanic(ctx, logger, r, debug.Stack(), component, name)

		if policy == CrashProcess {
			panic(r)
		}
	}
}

// HandlePanicValue records a panic value recovered elsewhere, e.g. by a
// framework middleware. Nil values are ignored.
func HandlePanicValue(ctx context.Context, logger log.Logger, panicValue any, component, name string) {
	if panicValue == nil {
		return
	}

	handlePanic(ctx, logger, panicValue, debug.Stack(), component, name)
}

func handlePanic(ctx context.Context, logger log.Logger, panicValue any, stack []byte, component, name string) {
	if ctx == nil {
		ctx = context.Background()
	}

	logPanicWithStack(ctx, logger, component, name, panicValue, stack)
	recordPanicMetric(ctx, component, name)
	RecordPanicToSpanWithComponent(ctx, panicValue, stack, component, name)
}

func logPanicWithStack(ctx context.Context, logger log.Logger, component, name string, panicValue any, stack []byte) {
	if logger == nil {
		return
	}

	logger.Log(ctx, log.LevelError, "panic recovered",
		log.String("component", component),
		log.String("source", name),
		log.String("panic_value", fmt.Sprintf("%v", panicValue)),
		log.String("stack_trace", string(stack)),
	)
}
