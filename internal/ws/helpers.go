package ws

import "github.com/google/uuid"

// newSessionID identifies one websocket connection. A user with several open
// devices holds several session ids.
func newSessionID() string {
	return uuid.NewString()
}
