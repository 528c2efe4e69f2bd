package transform

import (
	"opscrm-backend/lib/normalize"
	"opscrm-backend/lib/spreadsheet"
	"opscrm-backend/services/sync/store"
)

var allocationDates = normalize.DateOptions{SerialCorrectionDays: 2}

type ProviderAllocation struct {
	AllocationId string  `json:"allocation_id"`
	ProviderId   *string `json:"provider_id"`
	ProviderName *string `json:"provider_name"`
	RequestCode  *string `json:"request_code"`
	AllocatedAt  *string `json:"allocated_at"`
	Hours        float64 `json:"hours"`
	Status       *string `json:"status"`
	SyncedAt     string  `json:"synced_at"`
}

func (r ProviderAllocation) Key() string { return r.AllocationId }

func ProviderAllocations(rows []spreadsheet.Row) Result {
	syncedAt := nowISO()
	var result Result
	var records []store.Record

	for _, row := range rows {
		allocationId := normalize.String(cell(row, "ID ALOCAÇÃO"))
		if allocationId == "" {
			result.Dropped++
			continue
		}
		records = append(records, ProviderAllocation{
			AllocationId: allocationId,
			ProviderId:   normalize.Text(cell(row, "ID COLABORADOR")),
			ProviderName: normalize.Text(cell(row, "COLABORADOR", "COLABORADOR ")),
			RequestCode:  normalize.Text(cell(row, "PEDIDO")),
			AllocatedAt:  normalize.DateISO(cell(row, "DATA ALOCAÇÃO"), allocationDates),
			Hours:        normalize.Number(cell(row, "HORAS")),
			Status:       normalize.Text(cell(row, "ESTADO")),
			SyncedAt:     syncedAt,
		})
	}

	result.Records, result.Duplicates = dedupe(records)
	return result
}
