package ingest

/* Stage tracks where an inbound call is in the pipeline.
 * Follows the lifecycle:
 * Received -> TokenLookup -> Rejected | Authorized -> BodyParsed ->
 * ResponseSynthesized -> Captured -> Replied
 * Pipeline.Handle stops at Captured; the transport that writes the reply owns Replied.
 */
type Stage int

const (
	Received Stage = iota + 1
	TokenLookup
	Rejected
	Authorized
	BodyParsed
	ResponseSynthesized
	Captured
	Replied
)

// String returns the string representation of the stage
func (s Stage) String() string {
	switch s {
	case Received:
		return "received"
	case TokenLookup:
		return "token_lookup"
	case Rejected:
		return "rejected"
	case Authorized:
		return "authorized"
	case BodyParsed:
		return "body_parsed"
	case ResponseSynthesized:
		return "response_synthesized"
	case Captured:
		return "captured"
	case Replied:
		return "replied"
	default:
		return "unknown"
	}
}

// IsFinal returns true if no further transition can happen
func (s Stage) IsFinal() bool {
	return s == Rejected || s == Replied
}

// Outcome summarises a finished call for metrics
type Outcome int

const (
	OutcomeCaptured Outcome = iota + 1
	OutcomeRejected
	OutcomeCaptureFailed
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCaptured:
		return "captured"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCaptureFailed:
		return "capture_failed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}
