package health

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkPingChecker_Check(b *testing.B) {
	checker := NewPingChecker("bench", stubPinger{}, 0)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = checker.Check(ctx)
	}
}

func BenchmarkAggregator_CheckAll(b *testing.B) {
	for _, n := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("checkers=%d", n), func(b *testing.B) {
			agg := NewAggregator()
			for i := range n {
				agg.Register(fmt.Sprintf("cache-%d", i), fixed(Healthy("ok")))
			}
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = agg.CheckAll(ctx)
			}
		})
	}
}
