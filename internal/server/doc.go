// Package server is the composition root of assistant-admin.
//
// New opens the key/value store selected by storage.driver, builds the
// webhook client, a controller registry whose controllers keep their
// sessions in the store under the browser id, and the web UI. Run serves
// HTTP on server.http_addr or, with tailscale.enabled, on the tailnet
// (:80, or :443 with tailscale.https / tailscale.funnel).
//
// Endpoints besides the UI:
//
//	GET /health        liveness, always 200
//	GET /health/ready  200 when the session store answers a ping
//
// Every request is traced through otelhttp; spans are exported only when
// telemetry is configured.
package server
