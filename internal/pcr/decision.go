// Package pcr implements passive churn recovery: failed recurring payments are
// retried on a per-merchant schedule until they succeed or the curve runs out.
package pcr

import (
	"time"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

const (
	Runner = "PASSIVE_RECOVERY_WORKFLOW"

	ExecuteWorkflow = "EXECUTE_WORKFLOW"
	PsyncWorkflow   = "PSYNC_WORKFLOW"
	ReviewWorkflow  = "REVIEW_WORKFLOW"

	BusinessStatusExecuteComplete         = "EXECUTE_WORKFLOW_COMPLETE"
	BusinessStatusExecuteCompleteForPsync = "EXECUTE_WORKFLOW_COMPLETE_FOR_PSYNC"
	BusinessStatusExecuteFailure          = "EXECUTE_WORKFLOW_FAILURE"
	BusinessStatusPsyncComplete           = "PSYNC_WORKFLOW_COMPLETE"
	BusinessStatusReviewPending           = "REVIEW_WORKFLOW_PENDING"
	BusinessStatusPending                 = "PENDING"
)

// TrackerID names the tracker of task for key, e.g. an attempt or payment id.
func TrackerID(task, key string) string {
	return Runner + "_" + task + "_" + key
}

type TaskKind int

const (
	ExecuteTask TaskKind = iota
	PsyncTask
	ReviewTask
)

func (k TaskKind) String() string {
	switch k {
	case ExecuteTask:
		return "execute"
	case PsyncTask:
		return "psync"
	default:
		return "review"
	}
}

// Decision is the next task for a recovering payment.
type Decision struct {
	Kind      TaskKind
	AttemptID string
}

// DecideTask is a pure function of the intent status and whether this
// workflow already called the connector for the attempt it tracks.
func DecideTask(status enums.IntentStatus, calledConnector bool, activeAttemptID *string) Decision {
	switch {
	case (status == enums.IntentStatusProcessing || status == enums.IntentStatusFailed) && !calledConnector && activeAttemptID == nil:
		return Decision{Kind: ExecuteTask}
	case status == enums.IntentStatusProcessing && calledConnector && activeAttemptID != nil:
		return Decision{Kind: PsyncTask, AttemptID: *activeAttemptID}
	default:
		return Decision{Kind: ReviewTask}
	}
}

// AttemptClass is how recovery reads an attempt status.
type AttemptClass int

const (
	AttemptSucceeded AttemptClass = iota
	AttemptFailed
	AttemptProcessing
	AttemptInvalid
)

func (c AttemptClass) String() string {
	switch c {
	case AttemptSucceeded:
		return "succeeded"
	case AttemptFailed:
		return "failed"
	case AttemptProcessing:
		return "processing"
	default:
		return "invalid"
	}
}

func ClassifyAttempt(status enums.AttemptStatus) AttemptClass {
	switch status {
	case enums.AttemptStatusCharged:
		return AttemptSucceeded
	case enums.AttemptStatusFailure,
		enums.AttemptStatusAuthorizationFailed,
		enums.AttemptStatusRouterDeclined,
		enums.AttemptStatusCaptureFailed,
		enums.AttemptStatusVoidFailed:
		return AttemptFailed
	case enums.AttemptStatusPending,
		enums.AttemptStatusAuthorizing,
		enums.AttemptStatusStarted,
		enums.AttemptStatusCaptureInitiated,
		enums.AttemptStatusAuthenticationPending,
		enums.AttemptStatusUnresolved:
		return AttemptProcessing
	default:
		return AttemptInvalid
	}
}

type ActionKind int

const (
	SyncPayment ActionKind = iota
	RetryPayment
	TerminalFailure
	SuccessfulPayment
	ReviewPayment
	ManualReviewAction
)

func (k ActionKind) String() string {
	switch k {
	case SyncPayment:
		return "sync_payment"
	case RetryPayment:
		return "retry_payment"
	case TerminalFailure:
		return "terminal_failure"
	case SuccessfulPayment:
		return "successful_payment"
	case ReviewPayment:
		return "review_payment"
	default:
		return "manual_review"
	}
}

// Action is what a handler does after classifying an attempt. RetryAt is set
// only for RetryPayment.
type Action struct {
	Kind    ActionKind
	RetryAt *time.Time
}

// DecideAction maps a classified attempt and the next retry slot to an action.
func DecideAction(class AttemptClass, next *time.Time) Action {
	switch class {
	case AttemptSucceeded:
		return Action{Kind: SuccessfulPayment}
	case AttemptFailed:
		if next == nil {
			return Action{Kind: TerminalFailure}
		}
		return Action{Kind: RetryPayment, RetryAt: next}
	case AttemptProcessing:
		return Action{Kind: SyncPayment}
	default:
		return Action{Kind: ManualReviewAction}
	}
}
