package anthropic

import "go.uber.org/zap"

// Usage is the token count of one reply.
type Usage struct {
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

// USD per million tokens.
var rates = map[string]struct{ in, out float64 }{
	"claude-haiku-4-5-20251001": {in: 1.00, out: 5.00},
}

// CostUSD prices the reply for model. Unknown models cost nothing.
// Cache writes bill at 1.25x input and cache reads at 0.1x.
func (u Usage) CostUSD(model string) float64 {
	r, ok := rates[model]
	if !ok {
		return 0
	}
	in := float64(u.Input) + 1.25*float64(u.CacheWrite) + 0.1*float64(u.CacheRead)
	return (in*r.in + float64(u.Output)*r.out) / 1e6
}

// Log records the reply's tokens and price.
func (u Usage) Log(model string) {
	zap.L().Info("anthropic: usage",
		zap.String("model", model),
		zap.Int64("in", u.Input),
		zap.Int64("out", u.Output),
		zap.Int64("cache_write", u.CacheWrite),
		zap.Int64("cache_read", u.CacheRead),
		zap.Float64("usd", u.CostUSD(model)),
	)
}
