// Package core contains the social connection domain: platforms, owners,
// encrypted connection records, the adapter contracts every platform
// implements, the OAuth callback state machine and the multi-platform
// dispatcher. Platform adapters depend on this package; core must not depend
// on provider-specific or transport-specific packages.
package core
