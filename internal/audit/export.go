package audit

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var exportPrinter = message.NewPrinter(language.English)

// ExportCSV streams every entry matching the filter as CSV, walking the
// store page by page. Returns the number of exported rows.
func (s *Service) ExportCSV(ctx context.Context, f Filter, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	header := []string{"id", "company_id", "user_id", "user_name", "user_role", "action", "resource", "resource_id", "ip_address", "created_at"}
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	const pageSize = 500
	exported := 0
	for page := 1; ; page++ {
		entries, _, err := s.repo.Query(ctx, f, (page-1)*pageSize, pageSize)
		if err != nil {
			return exported, err
		}
		for _, e := range entries {
			userID := ""
			if e.UserID != nil {
				userID = strconv.FormatInt(*e.UserID, 10)
			}
			record := []string{
				e.ID,
				strconv.FormatInt(e.CompanyID, 10),
				userID,
				e.UserName,
				e.UserRole,
				e.Action,
				e.Resource,
				e.ResourceID,
				e.IPAddress,
				e.CreatedAt.Format("2006-01-02 15:04:05"),
			}
			if err := cw.Write(record); err != nil {
				return exported, err
			}
			exported++
		}
		if len(entries) < pageSize {
			break
		}
	}

	_ = cw.Write([]string{exportPrinter.Sprintf("%d entries exported", exported)})
	cw.Flush()
	return exported, cw.Error()
}
