package adapter

import "context"

// RelayClient is the external SMS dispatch service. Send returns nil only
// when the relay accepted the message; any non-success status or transport
// error is reported as a failure wrapping domain.ErrRelayFailure. The relay
// is best-effort: no retry, no delivery acknowledgment.
type RelayClient interface {
	Send(ctx context.Context, destination, message string) error
}
