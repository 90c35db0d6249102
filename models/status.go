// models/status.go
package models

// ProcessingStatus is the lifecycle of the retryable ledger records
// (reward transactions, wallet creations and credential issuances).
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "Pending"
	ProcessingStatusProcessing ProcessingStatus = "Processing"
	ProcessingStatusSuccess    ProcessingStatus = "Success"
	ProcessingStatusError      ProcessingStatus = "Error"
)

var processingTransitions = map[ProcessingStatus][]ProcessingStatus{
	ProcessingStatusPending:    {ProcessingStatusProcessing},
	ProcessingStatusError:      {ProcessingStatusProcessing},
	ProcessingStatusProcessing: {ProcessingStatusSuccess, ProcessingStatusError},
}

// CanTransition reports whether a record may move from s to next.
// Success is terminal.
func (s ProcessingStatus) CanTransition(next ProcessingStatus) bool {
	for _, allowed := range processingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s ProcessingStatus) Valid() bool {
	switch s {
	case ProcessingStatusPending, ProcessingStatusProcessing, ProcessingStatusSuccess, ProcessingStatusError:
		return true
	}
	return false
}
