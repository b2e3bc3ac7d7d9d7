// Package types holds the data types shared between the authorization layer
// and the connection that executes its requests.
package types

// ParsedResponse is a flat key/value view of a decoded response body from
// the remote service. Values keep their literal JSON text, so a numeric
// field such as expires_in looks up as "3600".
type ParsedResponse map[string]string

// Get returns the value for key and whether the field was present in the
// response.
func (r ParsedResponse) Get(key string) (string, bool) {
	v, ok := r[key]
	return v, ok
}
