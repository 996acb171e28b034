package export

import (
	"path"
	"strings"

	"github.com/ethoflow/ethoflow/internal/model"
	"github.com/ethoflow/ethoflow/pkg/table"
)

var unsafeChars = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// SafeFileName replaces characters that are invalid in file names on
// common filesystems.
func SafeFileName(name string) string {
	return unsafeChars.Replace(name)
}

// SubjectName returns the display name for a subject key.
func SubjectName(key string) string {
	if key == "" {
		return model.NoFocalSubject
	}
	return key
}

// FileName returns the output path of one table relative to the destination.
// With several observations each file is <obsID>_<subject>.<ext>; with one,
// the subject is appended to base after stripping base's extension.
func FileName(base string, u table.Unit, f Format, multi bool) string {
	subject := SubjectName(u.Subject)
	if multi || base == "" {
		return SafeFileName(u.ObservationID+"_"+subject) + f.Extension()
	}

	dir, file := path.Split(strings.ReplaceAll(base, `\`, "/"))
	file = strings.TrimSuffix(file, path.Ext(file))
	return dir + file + SafeFileName("_"+subject) + f.Extension()
}
