package matching

// Stage is a step of the match state machine.
type Stage int

const (
	StageEmbedDocuments Stage = iota
	StageEmbedCandidateSpans
	StageRank
	StageCompose
)

func (s Stage) String() string {
	switch s {
	case StageEmbedDocuments:
		return "embed_documents"
	case StageEmbedCandidateSpans:
		return "embed_candidate_spans"
	case StageRank:
		return "rank"
	case StageCompose:
		return "compose"
	default:
		return "unknown"
	}
}
