// Package api exposes the device registry and command dispatch over
// HTTP, and streams state-change events to dashboards over WebSocket.
//
// All device routes require a JWT from POST /api/auth/login. The
// server follows the same lifecycle as the other infrastructure
// components: New, Start(ctx), Close.
package api
