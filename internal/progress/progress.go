// Package progress defines the progress-notification contract between
// the codec pipeline and its callers.
package progress

// Func receives (bytesProcessed, bytesTotal) at segment granularity.
// A nil Func is valid and means no reporting.
type Func func(current, total int64)

// Notify invokes fn, swallowing a nil fn and any panic it raises. A
// broken sink must never fail or stall the pipeline that feeds it.
func Notify(fn Func, current, total int64) {
	if fn == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	fn(current, total)
}
