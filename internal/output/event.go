package output

// Event is a lifecycle record for one scan run, emitted by the orchestrator
// and by repo pipelines.
//
// Event types:
//   - run.started
//   - repo.started
//   - repo.phase
//   - repo.finished
//   - run.finished
type Event struct {
	Type     string `json:"type"`
	Run      string `json:"run,omitempty"`
	Repo     string `json:"repo,omitempty"`
	Phase    string `json:"phase,omitempty"`
	Status   string `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Repos    int    `json:"repos,omitempty"`
	Progress int    `json:"progress,omitempty"`
}
