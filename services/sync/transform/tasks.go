package transform

import (
	"opscrm-backend/lib/normalize"
	"opscrm-backend/lib/spreadsheet"
	"opscrm-backend/services/sync/store"
)

// task deadlines before 2000 can only be misparsed serials; the floor
// rejects them where other domains keep their history
var taskDates = normalize.DateOptions{SerialCorrectionDays: 2, MinYear: 2000}

type Task struct {
	TaskId      string  `json:"task_id"`
	Status      *string `json:"status"`
	Deadline    *string `json:"deadline"`
	Assignee    *string `json:"assignee"`
	Notes       *string `json:"notes"`
	Completed   bool    `json:"completed"`
	CompletedAt *string `json:"completed_at"`
	SyncedAt    string  `json:"synced_at"`
}

func (r Task) Key() string { return r.TaskId }

// Tasks maps the task-listing export, the one domain whose headers are
// in english (the listing module was bought in).
func Tasks(rows []spreadsheet.Row) Result {
	syncedAt := nowISO()
	var result Result
	var records []store.Record

	for _, row := range rows {
		taskId := normalize.String(cell(row, "TASK_ID"))
		if taskId == "" {
			result.Dropped++
			continue
		}
		records = append(records, Task{
			TaskId:      taskId,
			Status:      normalize.Text(cell(row, "STATUS")),
			Deadline:    normalize.DateISO(cell(row, "DEADLINE"), taskDates),
			Assignee:    normalize.Text(cell(row, "ASSIGNEE")),
			Notes:       normalize.Text(cell(row, "NOTES")),
			Completed:   normalize.Bool(cell(row, "COMPLETED")),
			CompletedAt: normalize.DateISO(cell(row, "COMPLETED_AT", "COMPLETED AT"), taskDates),
			SyncedAt:    syncedAt,
		})
	}

	result.Records, result.Duplicates = dedupe(records)
	return result
}
