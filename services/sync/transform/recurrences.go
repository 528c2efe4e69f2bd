package transform

import (
	"opscrm-backend/lib/normalize"
	"opscrm-backend/lib/spreadsheet"
	"opscrm-backend/services/sync/store"
)

var recurrenceDates = normalize.DateOptions{SerialCorrectionDays: 2}

type Recurrence struct {
	RecurrenceId string  `json:"recurrence_id"`
	ClientName   *string `json:"client_name"`
	Service      *string `json:"service"`
	Periodicity  *string `json:"periodicity"`
	NextDate     *string `json:"next_date"`
	Active       bool    `json:"active"`
	SyncedAt     string  `json:"synced_at"`
}

func (r Recurrence) Key() string { return r.RecurrenceId }

func Recurrences(rows []spreadsheet.Row) Result {
	syncedAt := nowISO()
	var result Result
	var records []store.Record

	for _, row := range rows {
		recurrenceId := normalize.String(cell(row, "ID RECORRÊNCIA"))
		if recurrenceId == "" {
			result.Dropped++
			continue
		}
		records = append(records, Recurrence{
			RecurrenceId: recurrenceId,
			ClientName:   normalize.Text(cell(row, "CLIENTE")),
			Service:      normalize.Text(cell(row, "SERVIÇO")),
			Periodicity:  normalize.Text(cell(row, "PERIODICIDADE")),
			NextDate:     normalize.DateISO(cell(row, "PRÓXIMA DATA"), recurrenceDates),
			Active:       normalize.Bool(cell(row, "ATIVA")),
			SyncedAt:     syncedAt,
		})
	}

	result.Records, result.Duplicates = dedupe(records)
	return result
}
