package hermes

type RankingGeneratedEvent struct {
	Year    int     `json:"year"`
	RunID   string  `json:"run_id"`
	Ranked  int     `json:"ranked"`
	Skipped []int64 `json:"skipped,omitempty"`
}

func (e RankingGeneratedEvent) MsgID() string { return runMsgID("generated", e.RunID) }

type RankingDeletedEvent struct {
	Year            int `json:"year"`
	Ranks           int `json:"ranks"`
	DimensionScores int `json:"dimension_scores"`
}

type RankingRegeneratedEvent struct {
	Year   int    `json:"year"`
	Reason string `json:"reason"`
	RunID  string `json:"run_id,omitempty"`
}

func (e RankingRegeneratedEvent) MsgID() string { return runMsgID("regenerated", e.RunID) }

func runMsgID(kind, runID string) string {
	if runID == "" {
		return ""
	}
	return "ranking-" + kind + "-" + runID
}

// RankingInvalidatedEvent is published when a forced mutation changes the
// inputs of an existing ranking.
type RankingInvalidatedEvent struct {
	Year int    `json:"year"`
	Op   string `json:"op"`
}

type WeightsNormalizedEvent struct {
	Scope  string `json:"scope"`
	Before []int  `json:"before"`
	After  []int  `json:"after"`
}

type ScoresImportedEvent struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// DocumentEvent announces a published or removed annual report.
type DocumentEvent struct {
	ID       int64  `json:"id"`
	Year     int    `json:"year"`
	Title    string `json:"title"`
	FileName string `json:"file_name"`
}
