package runs

import "fmt"

// Status is the run-level state machine position. Transitions are driven
// externally, one stage at a time: this is a checkpointed batch pipeline,
// not a scheduler loop.
type Status string

const (
	StatusCreated      Status = "CREATED"
	StatusFetching     Status = "FETCHING"
	StatusScoring      Status = "SCORING"
	StatusClassifying  Status = "CLASSIFYING"
	StatusScraping     Status = "SCRAPING"
	StatusFinalScoring Status = "FINAL_SCORING"
	StatusComplete     Status = "COMPLETE"
	StatusFailed       Status = "FAILED"
)

// statusRank orders the forward progression. FAILED sits outside the order:
// it is reachable from any stage and retrying a stage moves the run back
// into the progression.
var statusRank = map[Status]int{
	StatusCreated:      0,
	StatusFetching:     1,
	StatusScoring:      2,
	StatusClassifying:  3,
	StatusScraping:     4,
	StatusFinalScoring: 5,
	StatusComplete:     6,
}

// Status reads the persisted run status. A run with no recorded status is
// CREATED.
func (m *Manager) Status() (Status, string, error) {
	meta, err := m.Metadata()
	if err != nil {
		return "", "", err
	}
	status, _ := meta["status"].(string)
	failedStage, _ := meta["failed_stage"].(string)
	if status == "" {
		return StatusCreated, "", nil
	}
	return Status(status), failedStage, nil
}

// SetStatus advances the persisted run status. The status never moves
// backwards: re-running an earlier stage on a further-along run keeps the
// later status. Entering FAILED always sticks until a retry succeeds.
func (m *Manager) SetStatus(next Status) error {
	if _, known := statusRank[next]; !known && next != StatusFailed {
		return fmt.Errorf("unknown run status %q", next)
	}

	current, _, err := m.Status()
	if err != nil {
		return err
	}
	if current != StatusFailed && next != StatusFailed {
		if statusRank[next] < statusRank[current] {
			return nil
		}
	}
	return m.SaveMetadata(map[string]any{
		"status":       string(next),
		"failed_stage": "",
	}, true)
}

// Fail records the absorbing FAILED state together with the stage that
// broke. Earlier stage outputs are never rolled back.
func (m *Manager) Fail(stage string) error {
	return m.SaveMetadata(map[string]any{
		"status":       string(StatusFailed),
		"failed_stage": stage,
	}, true)
}
