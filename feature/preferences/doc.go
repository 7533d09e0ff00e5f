// Package preferences exposes the preference layer over HTTP.
//
// It follows the handler/service split: the Service wraps the injector,
// audit trail and reconcile engine, and the Handler maps Fiber requests
// onto it.
//
// # Endpoints
//
//   - GET    /preferences            list every resolved preference
//   - GET    /preferences/:key       resolve one key (default, decrypt, cache query params)
//   - PUT    /preferences/:key       write one key to every provider
//   - DELETE /preferences/:key       remove one key from every provider
//   - POST   /preferences/clear      wipe every provider
//   - GET    /preferences/audit      buffered audit trail
//   - GET    /preferences/reconcile  provider drift report and repair
//
// Errors from the preference layer map onto HTTP statuses: missing keys
// are 404, rejected writes are 422, unresolvable conflicts are 409,
// bad options are 400 and everything else is 500.
package preferences
