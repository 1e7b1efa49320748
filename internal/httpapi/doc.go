// ABOUTME: Package doc for the HTTP surface
// ABOUTME: REST endpoints, websocket admission, health and metrics

// Package httpapi exposes the gateway over HTTP: account signup and login,
// the conversation lifecycle endpoints, admin analytics, the websocket
// upgrade that feeds the session dispatcher, and the health and metrics
// endpoints.
//
// All REST responses use a uniform envelope: {"success": true, "data": ...}
// on success and {"success": false, "message": ...} on failure. Websocket
// admission verifies the bearer token before upgrading; an unauthenticated
// client never holds a socket.
package httpapi
