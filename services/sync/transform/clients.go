package transform

import (
	"opscrm-backend/lib/normalize"
	"opscrm-backend/lib/spreadsheet"
	"opscrm-backend/services/sync/store"
)

var clientDates = normalize.DateOptions{SerialCorrectionDays: 2}

type Client struct {
	UserId       string  `json:"user_id"`
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	RegisteredAt *string `json:"registered_at"`
	Active       bool    `json:"active"`
	Address      *string `json:"address"`
	PostalCode   *string `json:"postal_code"`
	SyncedAt     string  `json:"synced_at"`
}

func (r Client) Key() string { return r.UserId }

func Clients(rows []spreadsheet.Row) Result {
	syncedAt := nowISO()
	var result Result
	var records []store.Record

	for _, row := range rows {
		// user ids are numeric in the export but stored as text
		userId := normalize.String(cell(row, "ID UTILIZADOR"))
		if userId == "" {
			result.Dropped++
			continue
		}
		records = append(records, Client{
			UserId:       userId,
			Name:         normalize.Text(cell(row, "NOME")),
			Email:        normalize.Text(cell(row, "EMAIL", "E-MAIL")),
			Phone:        normalize.Text(cell(row, "TELEFONE")),
			RegisteredAt: normalize.DateISO(cell(row, "DATA REGISTO"), clientDates),
			Active:       normalize.Bool(cell(row, "ATIVO")),
			Address:      normalize.Text(cell(row, "MORADA")),
			PostalCode:   normalize.Text(cell(row, "CÓDIGO POSTAL")),
			SyncedAt:     syncedAt,
		})
	}

	result.Records, result.Duplicates = dedupe(records)
	return result
}
