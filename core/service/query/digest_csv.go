package query

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"digest_server/core/domain"
)

// CSVHeader is the fixed export column order.
var CSVHeader = []string{"sender", "subject", "email", "summary", "createdAt", "updatedAt"}

// EncodeCSV renders emails with a header row. The email column carries the email id.
func EncodeCSV(emails []*domain.Email) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range emails {
		record := []string{
			e.Sender,
			e.Subject,
			e.ID.String(),
			e.SummaryText(),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename names an export taken at t, e.g. email_05-Mar-2026_14-07UTC.csv.
func ExportFilename(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%sUTC.csv", prefix, t.UTC().Format("02-Jan-2006_15-04"))
}
