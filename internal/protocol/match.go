package protocol

// MatchesTarget reports whether a command envelope targets the endpoint
// with the given identity.
//
// The match is an exact, case-sensitive string comparison between the
// envelope's id field and the endpoint's own id. There are no wildcards
// and no prefix matching; an empty operand on either side never
// matches. This self-filtering is the only isolation mechanism on the
// shared channel, where every endpoint receives every message.
func MatchesTarget(e Envelope, selfID string) bool {
	if e.ID == "" || selfID == "" {
		return false
	}
	return e.ID == selfID
}
