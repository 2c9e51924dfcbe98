package nsd

// ClientMetricsSink is the per-request/per-client reporting surface,
// grounded on NsdService's NetworkNsdReportedMetrics call sites
// (reportServiceDiscoveryStarted/Stop/Failed, reportServiceResolved, ...).
// nsdcore treats it as a first-class collaborator rather than folding
// metrics calls invisibly into the state machine, matching spec.md's passing
// mention that the client registry owns "a per-client metrics handle".
type ClientMetricsSink interface {
	ReportDiscoveryStarted(uid int, transactionID int32)
	ReportDiscoveryStopped(uid int, transactionID int32, foundCount, lostCount int, sentQueryCount int)
	ReportDiscoveryFailed(uid int, kind FailureKind)
	ReportRegistrationSucceeded(uid int, transactionID int32)
	ReportRegistrationFailed(uid int, kind FailureKind)
	ReportUnregistration(uid int, transactionID int32)
	ReportResolveSucceeded(uid int, transactionID int32, durationMillis int64)
	ReportResolveFailed(uid int, kind FailureKind)
}

// NoopMetricsSink discards everything; the default when no sink is wired.
type NoopMetricsSink struct{}

func (NoopMetricsSink) ReportDiscoveryStarted(int, int32)                   {}
func (NoopMetricsSink) ReportDiscoveryStopped(int, int32, int, int, int)    {}
func (NoopMetricsSink) ReportDiscoveryFailed(int, FailureKind)              {}
func (NoopMetricsSink) ReportRegistrationSucceeded(int, int32)              {}
func (NoopMetricsSink) ReportRegistrationFailed(int, FailureKind)           {}
func (NoopMetricsSink) ReportUnregistration(int, int32)                     {}
func (NoopMetricsSink) ReportResolveSucceeded(int, int32, int64)            {}
func (NoopMetricsSink) ReportResolveFailed(int, FailureKind)                {}

// CountingMetricsSink is a test double that counts calls by method name,
// in the spirit of the teacher's counting fakes used across pkg/transfer
// tests.
type CountingMetricsSink struct {
	Counts map[string]int
}

// NewCountingMetricsSink returns a ready-to-use counting sink.
func NewCountingMetricsSink() *CountingMetricsSink {
	return &CountingMetricsSink{Counts: map[string]int{}}
}

func (c *CountingMetricsSink) bump(name string) { c.Counts[name]++ }

func (c *CountingMetricsSink) ReportDiscoveryStarted(int, int32) { c.bump("DiscoveryStarted") }
func (c *CountingMetricsSink) ReportDiscoveryStopped(int, int32, int, int, int) {
	c.bump("DiscoveryStopped")
}
func (c *CountingMetricsSink) ReportDiscoveryFailed(int, FailureKind)    { c.bump("DiscoveryFailed") }
func (c *CountingMetricsSink) ReportRegistrationSucceeded(int, int32)    { c.bump("RegistrationSucceeded") }
func (c *CountingMetricsSink) ReportRegistrationFailed(int, FailureKind) { c.bump("RegistrationFailed") }
func (c *CountingMetricsSink) ReportUnregistration(int, int32)          { c.bump("Unregistration") }
func (c *CountingMetricsSink) ReportResolveSucceeded(int, int32, int64) { c.bump("ResolveSucceeded") }
func (c *CountingMetricsSink) ReportResolveFailed(int, FailureKind)     { c.bump("ResolveFailed") }
