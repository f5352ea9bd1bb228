// Package web serves the browser side of the verification flow: the
// OIDC-protected entry point users land on from the /verify command,
// the callbacks that drive the linking state machine, the polling API
// the command reply links to, and the success and error pages.
package web
