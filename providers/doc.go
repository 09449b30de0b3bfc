// Package providers holds the pieces every platform adapter shares: the
// x/oauth2 backed authorization flow, the HTTP runtime and result helpers.
// Platform adapters live in the sub packages.
package providers
