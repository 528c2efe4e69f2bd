package transform

import (
	"opscrm-backend/lib/normalize"
	"opscrm-backend/lib/spreadsheet"
	"opscrm-backend/services/sync/store"
)

var requestDates = normalize.DateOptions{SerialCorrectionDays: 2}

type ServiceRequest struct {
	RequestCode string  `json:"request_code"`
	RequestedAt *string `json:"requested_at"`
	Service     *string `json:"service"`
	Status      *string `json:"status"`
	ClientName  *string `json:"client_name"`
	Value       float64 `json:"value"`
	Paid        bool    `json:"paid"`
	ScheduledAt *string `json:"scheduled_at"`
	Notes       *string `json:"notes"`
	SyncedAt    string  `json:"synced_at"`
}

func (r ServiceRequest) Key() string { return r.RequestCode }

// ServiceRequests maps the request-listing export. Older backoffice
// versions emit "CÓDIGO " with a trailing space.
func ServiceRequests(rows []spreadsheet.Row) Result {
	syncedAt := nowISO()
	var result Result
	var records []store.Record

	for _, row := range rows {
		code := normalize.String(cell(row, "CÓDIGO", "CÓDIGO "))
		if code == "" {
			result.Dropped++
			continue
		}
		records = append(records, ServiceRequest{
			RequestCode: code,
			RequestedAt: normalize.DateISO(cell(row, "DATA PEDIDO"), requestDates),
			Service:     normalize.Text(cell(row, "SERVIÇO")),
			Status:      normalize.Text(cell(row, "ESTADO")),
			ClientName:  normalize.Text(cell(row, "CLIENTE")),
			Value:       normalize.Number(cell(row, "VALOR", "VALOR ")),
			Paid:        normalize.Bool(cell(row, "PAGO")),
			ScheduledAt: normalize.DateISO(cell(row, "DATA AGENDAMENTO"), requestDates),
			Notes:       normalize.Text(cell(row, "OBSERVAÇÕES")),
			SyncedAt:    syncedAt,
		})
	}

	result.Records, result.Duplicates = dedupe(records)
	return result
}
