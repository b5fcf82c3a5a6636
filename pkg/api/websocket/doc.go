// Package websocket streams turn events to clients.
//
// Clients connect to /api/v1/conversations/:id/ws?tenant_id=<tenant> and
// receive turn.completed and turn.failed events of that conversation as
// JSON text frames.
package websocket
