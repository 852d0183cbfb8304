package circuitbreaker

import "github.com/sony/gobreaker"

var (
	// MaxNumOfFailingRequests 触发熔断前至少需要的请求数
	MaxNumOfFailingRequests = 10
	// FailingRatio 触发熔断的失败比例
	FailingRatio = 0.6
)

// NewCircuitBreaker 返回一个 *gobreaker.CircuitBreaker。
// 当请求数超过 MaxNumOfFailingRequests 且失败比例达到 FailingRatio 时打开熔断。
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) > MaxNumOfFailingRequests && ratio >= FailingRatio
		},
	})
}
