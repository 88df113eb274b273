package exprlang

// WriteDefault re-emits expr using DefaultWriteOptions, matching the
// zero-argument Expression.Write() form described in §6.
func WriteDefault(expr Expression) string {
	return expr.Write(DefaultWriteOptions)
}

// Evaluate is a convenience wrapper for callers that don't want a
// trace sink.
func Evaluate(expr Expression, ctx *Context) (Value, error) {
	return expr.Evaluate(ctx, nil)
}
