/*
Package tracing provides lightweight request tracing for the terminal host.

Every HTTP request gets a span. Handlers open child spans around terminal
operations (spawn, restart, context delivery) so a slow request can be
attributed to the shell it waited on. Completed spans are logged through zap
from a buffered collector; a full buffer drops spans instead of blocking a
request.

Trace context propagates through the X-Trace-ID and X-Span-ID headers so a
host application can correlate its own logs with ours.

# Usage

	tracer := tracing.New("termhost", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(c.Request.Context(), "session.start")
	err := sess.Start(ctx)
	span.SetError(err)
	span.Finish()
	tracer.Submit(span)
*/
package tracing
