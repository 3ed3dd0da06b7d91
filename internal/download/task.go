package download

import "fmt"

// Task is one channel's historical download.
type Task struct {
	Channel string
}

func (t Task) String() string {
	return t.Channel
}

type TaskResult struct {
	Task     Task
	Success  bool
	Empty    bool
	Comments int
	Path     string
	Error    error
}

// BatchResult summarizes a multi-channel download run.
type BatchResult struct {
	Total    int
	Success  int
	Empty    int
	Failed   int
	Comments int
	Errors   []string
}

func (r *BatchResult) record(tr TaskResult) {
	switch {
	case tr.Error != nil:
		r.Failed++
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", tr.Task, tr.Error))
	case tr.Empty:
		r.Empty++
	default:
		r.Success++
	}
	r.Comments += tr.Comments
}
