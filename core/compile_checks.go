package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ AdapterRegistry = (*PlatformRegistry)(nil)
	_ ConnectionStore = (*MemoryConnectionStore)(nil)
	_ VerifierStore   = (*MemoryVerifierStore)(nil)
	_ OwnerResolver   = OwnerResolverFunc(nil)
	_ MetricsRecorder = NopMetricsRecorder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
