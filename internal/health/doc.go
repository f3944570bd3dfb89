// Package health watches backend liveness.
//
// A Monitor holds one WebSocket to the backend health endpoint and redials
// with exponential backoff when it drops. After repeated abnormal closes, or
// once reconnect attempts run out, it switches permanently to polling
// GET /health. Subscribers get connectivity changes and every health report.
package health
