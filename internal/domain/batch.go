package domain

type BatchState string

const (
	BatchQueued    BatchState = "queued"
	BatchRunning   BatchState = "running"
	BatchCompleted BatchState = "completed"
	BatchFailed    BatchState = "failed"
	BatchCanceled  BatchState = "canceled"
)

func (s BatchState) IsTerminal() bool {
	return s == BatchCompleted || s == BatchFailed || s == BatchCanceled
}

func BatchCanTransition(from, to BatchState) bool {
	if from == to {
		return true
	}
	switch from {
	case BatchQueued:
		return to == BatchRunning || to == BatchCanceled || to == BatchFailed
	case BatchRunning:
		return to == BatchCompleted || to == BatchCanceled || to == BatchFailed
	case BatchCompleted, BatchCanceled, BatchFailed:
		return false
	default:
		return false
	}
}
