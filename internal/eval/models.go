package eval

// Status is the evaluation record lifecycle. Records start in_progress, end
// completed (scored) or archived, and archived is terminal.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// Active reports whether a record in this status blocks creating another
// record for the same (student, tool) pair.
func (s Status) Active() bool {
	return s == StatusInProgress || s == StatusCompleted
}

// SegmentProgress tracks completion against one segment rule of a leaf
// criterion during scoring.
type SegmentProgress struct {
	TargetCount    int `json:"target_count"`
	CompletedCount int `json:"completed_count"`
}

// Score is one flattened leaf entry of a record. The set of entries is fixed
// at creation; only CompletedCount (and optional segment progress) change.
type Score struct {
	NodeID         string            `json:"node_id"`
	NodeName       string            `json:"node_name"`
	IsLeaf         bool              `json:"is_leaf"`
	TargetCount    int               `json:"target_count"`
	CompletedCount int               `json:"completed_count"`
	Segments       []SegmentProgress `json:"segment_scores,omitempty"`
}

// Record is a per-student, per-tool snapshot of a tool's leaf criteria. Later
// edits to the source tree never flow back into an existing record.
type Record struct {
	ID          string  `json:"id"`
	StudentID   string  `json:"student_id"`
	ToolID      string  `json:"tool_id"`
	ToolName    string  `json:"tool_name"`
	Scores      []Score `json:"evaluation_scores"`
	Status      Status  `json:"status"`
	EvaluatedAt *int64  `json:"evaluated_at,omitempty"`
	CreatedAt   int64   `json:"created_at,omitempty"`
	UpdatedAt   int64   `json:"updated_at,omitempty"`
}
