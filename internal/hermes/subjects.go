package hermes

import "strconv"

const (
	SubjectWeightsNormalized = "weights.normalized"

	DefaultStream = "RANKING_EVENTS"
)

// StreamSubjects are the subject trees captured by the ranking stream.
func StreamSubjects() []string {
	return []string{"ranking.>", "weights.>", "scores.>", "documents.>"}
}

func year(y int) string { return strconv.Itoa(y) }

// Ranking lifecycle subjects
func SubjectRankingGenerated(y int) string   { return "ranking." + year(y) + ".generated" }
func SubjectRankingDeleted(y int) string     { return "ranking." + year(y) + ".deleted" }
func SubjectRankingRegenerated(y int) string { return "ranking." + year(y) + ".regenerated" }
func SubjectRankingInvalidated(y int) string { return "ranking." + year(y) + ".invalidated" }

func SubjectScoresImported(y int) string { return "scores." + year(y) + ".imported" }

func SubjectDocumentPublished(y int) string { return "documents." + year(y) + ".published" }
func SubjectDocumentRemoved(y int) string   { return "documents." + year(y) + ".removed" }
