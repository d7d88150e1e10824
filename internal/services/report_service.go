package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/repositories"
)

const (
	summarySheet   = "Summary"
	questionsSheet = "Questions"
	signalsSheet   = "Signals"
)

type reportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewReportService(repo repositories.Repository, logger *slog.Logger) ReportService {
	return &reportService{repo: repo, logger: logger}
}

// AttemptReport renders the persisted audit of one attempt as an xlsx
// workbook: a summary, per-question timing and locks, and every signal.
func (s *reportService) AttemptReport(ctx context.Context, learnerID, attemptID string) ([]byte, error) {
	record, err := s.repo.Attempts().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if record.LearnerID != learnerID {
		perm := NewPermissionError(learnerID, attemptID, "attempt", "report", "attempt belongs to another learner")
		return nil, fmt.Errorf("%w: %w", ErrAttemptAccessDenied, perm)
	}

	signals, err := s.repo.ProctoringEvents().ListByAttempt(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}

	var payload *models.SubmissionPayload
	if len(record.Payload) > 0 {
		payload = &models.SubmissionPayload{}
		if err := json.Unmarshal(record.Payload, payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the summary
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if err := writeRows(f, summarySheet, []string{"Field", "Value"}, summaryRows(record)); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(questionsSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if err := writeRows(f, questionsSheet,
		[]string{"Question ID", "Response (ms)", "Suspicious", "Locked", "Violations", "Answer"},
		questionRows(payload)); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(signalsSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if err := writeRows(f, signalsSheet,
		[]string{"Occurred At", "Question Index", "Question ID", "Kind", "Signal", "Key", "Effective"},
		signalRows(signals)); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Attempt report generated",
		"attempt_id", attemptID,
		"learner_id", learnerID,
		"signals", len(signals))
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write %s header: %w", sheet, err)
		}
	}
	for r, row := range rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", sheet, r+1, err)
			}
		}
	}
	return nil
}

func summaryRows(record *models.AttemptRecord) [][]interface{} {
	rows := [][]interface{}{
		{"Attempt ID", record.ID},
		{"Learner ID", record.LearnerID},
		{"Training ID", record.TrainingID},
		{"Quiz ID", record.QuizID},
		{"Final Exam", record.FinalExam},
		{"Attempt Number", record.AttemptNumber},
		{"Status", string(record.Status)},
		{"Started At", record.StartedAt.Format(time.RFC3339)},
		{"Violations", record.ViolationCount},
	}
	if record.EndedAt != nil {
		rows = append(rows, []interface{}{"Ended At", record.EndedAt.Format(time.RFC3339)})
	}
	if record.EndReason != "" {
		rows = append(rows, []interface{}{"End Reason", string(record.EndReason)})
	}
	if record.ClientScore != nil {
		rows = append(rows, []interface{}{"Client Score", *record.ClientScore})
	}
	if record.Score != nil {
		rows = append(rows, []interface{}{"Score", *record.Score})
	}
	if record.Passed != nil {
		rows = append(rows, []interface{}{"Passed", *record.Passed})
	}
	if record.SecurityMessage != nil {
		rows = append(rows, []interface{}{"Security Message", *record.SecurityMessage})
	}
	return rows
}

func questionRows(payload *models.SubmissionPayload) [][]interface{} {
	if payload == nil {
		return nil
	}
	meta := payload.Metadata

	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range meta.QuestionResponseTimes {
		add(id)
	}
	for id := range payload.Answers {
		add(id)
	}
	for _, id := range meta.LockedQuestions {
		add(id)
	}
	sort.Strings(ids)

	locked := toSet(meta.LockedQuestions)
	suspicious := toSet(meta.SuspiciousQuestions)

	rows := make([][]interface{}, 0, len(ids))
	for _, id := range ids {
		kinds := make([]string, 0, len(meta.ViolationsByQuestion[id]))
		for _, k := range meta.ViolationsByQuestion[id] {
			kinds = append(kinds, string(k))
		}
		answer := ""
		if a, ok := payload.Answers[id]; ok {
			answer = a.String()
		}
		var responseMs interface{} = ""
		if ms, ok := meta.QuestionResponseTimes[id]; ok {
			responseMs = ms
		}
		rows = append(rows, []interface{}{
			id,
			responseMs,
			suspicious[id],
			locked[id],
			strings.Join(kinds, ", "),
			answer,
		})
	}
	return rows
}

func signalRows(signals []models.ProctoringEvent) [][]interface{} {
	rows := make([][]interface{}, 0, len(signals))
	for _, ev := range signals {
		rows = append(rows, []interface{}{
			ev.OccurredAt.Format(time.RFC3339Nano),
			ev.QuestionIndex,
			ev.QuestionID,
			string(ev.Kind),
			ev.Signal,
			ev.Key,
			ev.Effective,
		})
	}
	return rows
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
