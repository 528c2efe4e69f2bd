package transform

import (
	"opscrm-backend/lib/normalize"
	"opscrm-backend/lib/spreadsheet"
	"opscrm-backend/services/sync/store"
)

// billing exports carry historical rows, some predating 2000; no
// year floor here, unlike tasks
var billingDates = normalize.DateOptions{SerialCorrectionDays: 2}

type BillingProcess struct {
	RequestCode   string  `json:"request_code"`
	InvoicedValue float64 `json:"invoiced_value"`
	PaidValue     float64 `json:"paid_value"`
	IssuedAt      *string `json:"issued_at"`
	PaidAt        *string `json:"paid_at"`
	Status        *string `json:"status"`
	PaymentMethod *string `json:"payment_method"`
	SyncedAt      string  `json:"synced_at"`
}

func (r BillingProcess) Key() string { return r.RequestCode }

// BillingProcesses maps the billing export. The issue-date header has
// shipped misspelled ("DATA EMISÃO") since at least 2022; both
// spellings are accepted.
func BillingProcesses(rows []spreadsheet.Row) Result {
	syncedAt := nowISO()
	var result Result
	var records []store.Record

	for _, row := range rows {
		code := normalize.String(cell(row, "CÓDIGO PEDIDO"))
		if code == "" {
			result.Dropped++
			continue
		}
		records = append(records, BillingProcess{
			RequestCode:   code,
			InvoicedValue: normalize.Number(cell(row, "VALOR FATURADO")),
			PaidValue:     normalize.Number(cell(row, "VALOR PAGO")),
			IssuedAt:      normalize.DateISO(cell(row, "DATA EMISSÃO", "DATA EMISÃO"), billingDates),
			PaidAt:        normalize.DateISO(cell(row, "DATA PAGAMENTO"), billingDates),
			Status:        normalize.Text(cell(row, "ESTADO")),
			PaymentMethod: normalize.Text(cell(row, "MÉTODO PAGAMENTO")),
			SyncedAt:      syncedAt,
		})
	}

	result.Records, result.Duplicates = dedupe(records)
	return result
}
