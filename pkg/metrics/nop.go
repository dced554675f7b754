package metrics

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordTick(string)                {}
func (Nop) RecordTrigger(string, string)     {}
func (Nop) RecordBreaker(string)             {}
func (Nop) RecordStrategyEvent(string)       {}
func (Nop) RecordMessageSent(string, string) {}
func (Nop) RecordError(string)               {}
func (Nop) RecordLastPrice(string, float64)  {}
func (Nop) RecordLatency(string, float64)    {}
