package render

import (
	"fmt"
	"strings"

	"pauta/internal/domain"
)

// FilenameDateLayout is the date layout used in every export filename.
const FilenameDateLayout = "02-01-2006"

var unsafeName = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
	"\"", "", "<", "", ">", "", "|", "-", " ", "_",
)

// Filename is Pauta_{number}_{dd-mm-yyyy}.{ext}. It depends only on the
// agenda number, date and the format.
func Filename(a domain.Agenda, f Format) string {
	date := strings.TrimSpace(a.Date)
	if d, err := a.SessionDate(); err == nil {
		date = d.Format(FilenameDateLayout)
	}
	number := unsafeName.Replace(strings.TrimSpace(a.Number))
	if number == "" {
		number = "sem-numero"
	}
	return fmt.Sprintf("Pauta_%s_%s.%s", number, unsafeName.Replace(date), f.Ext())
}
