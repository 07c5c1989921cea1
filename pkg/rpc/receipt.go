package rpc

// Receipt status handling is isolated here because the wire shape changed
// across node versions. Callers only ever ask "did it succeed" and "what
// events did it emit".

// Succeeded reports whether the transaction executed successfully.
func Succeeded(r *Receipt) bool {
	if r == nil {
		return false
	}
	if r.ExecutionStatus != "" {
		return r.ExecutionStatus == "SUCCEEDED"
	}
	if r.FinalityStatus != "" {
		return r.FinalityStatus == "ACCEPTED_ON_L2" || r.FinalityStatus == "ACCEPTED_ON_L1"
	}
	// Legacy single-status nodes.
	switch r.Status {
	case "ACCEPTED_ON_L2", "ACCEPTED_ON_L1", "SUCCEEDED":
		return true
	}
	return false
}

// ExtractEvents returns the receipt's events, or nil for a nil or
// unsuccessful receipt. Reverted transactions emit nothing durable.
func ExtractEvents(r *Receipt) []RawEvent {
	if !Succeeded(r) {
		return nil
	}
	return r.Events
}
