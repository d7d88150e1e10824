package attempt

import (
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
)

// Environment is the client context attached to every submission.
type Environment struct {
	UserAgent    string
	SessionToken string
}

func buildPayload(a *Attempt, tally proctoring.Tally, env Environment, end time.Time) *models.SubmissionPayload {
	meta := models.SubmissionMetadata{
		StartTime:                 a.StartedAt,
		EndTime:                   end,
		ViolationCount:            len(a.violations),
		QuestionResponseTimes:     make(map[string]int64),
		ViolationTypes:            make([]models.ViolationKind, 0, len(a.violations)),
		ViolationsByQuestion:      make(map[string][]models.ViolationKind),
		UserAgent:                 env.UserAgent,
		SessionToken:              env.SessionToken,
		LockedQuestions:           make([]string, 0, len(a.locked)),
		TabSwitchCount:            tally.TabSwitches,
		KeyboardShortcutAttempted: tally.ShortcutAttempted,
		CopyPasteAttempted:        tally.ClipboardAttempt,
		RightClickAttempted:       tally.RightClicked,
	}

	for _, v := range a.violations {
		meta.ViolationTypes = append(meta.ViolationTypes, v.Kind)
		meta.ViolationsByQuestion[v.QuestionID] = append(meta.ViolationsByQuestion[v.QuestionID], v.Kind)
	}
	for _, i := range a.locked {
		meta.LockedQuestions = append(meta.LockedQuestions, a.records[i].QuestionID)
	}
	for _, r := range a.records {
		if ms, ok := r.ResponseMs(); ok {
			meta.QuestionResponseTimes[r.QuestionID] = ms
		}
		if r.Suspicious() {
			meta.SuspiciousQuestions = append(meta.SuspiciousQuestions, r.QuestionID)
		}
	}

	return &models.SubmissionPayload{
		Answers:  a.answers(),
		Metadata: meta,
	}
}
