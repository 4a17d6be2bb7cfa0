package auth

// Guard functions are the single source of truth for per-resource
// authorization. Handlers consult them before touching the store; a false
// return means 403, never a silent pass-through.

// CanViewMessage reports whether caller is a participant of the message.
// Both sender and recipient may view it for its entire lifetime.
func CanViewMessage(caller, fromUsername, toUsername string) bool {
	return caller == fromUsername || caller == toUsername
}

// CanMarkRead reports whether caller may acknowledge the message.
// Read receipts are recipient-only; the sender never qualifies.
func CanMarkRead(caller, toUsername string) bool {
	return caller == toUsername
}

// CanViewProfile reports whether caller may see target's profile detail and
// per-user message listings. Only the owner qualifies; the public listing is
// the sole multi-user view.
func CanViewProfile(caller, targetUsername string) bool {
	return caller == targetUsername
}
