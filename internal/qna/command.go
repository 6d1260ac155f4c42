// Package qna builds the shell invocations sent to the remote QnA tool.
//
// Escaping is deliberately narrow: the operator is trusted, the query text
// is not. Windows gets only its double quotes escaped and the query is left
// unquoted, which is how cmd.exe echo behaves. POSIX targets get ", ` and $
// escaped and the query wrapped in double quotes. Nothing else is touched.
package qna

import (
	"strings"

	"remoteqna/internal/models"
)

// ExistsMarker is printed by FileExistsProbe when the file is present.
const ExistsMarker = "EXISTS"

var (
	windowsEscaper = strings.NewReplacer(`"`, `\"`)
	// strings.Replacer never rescans its own output, so the backslashes
	// added for one character are not escaped again by another rule.
	posixEscaper = strings.NewReplacer(`"`, `\"`, "`", "\\`", `$`, `\$`)
)

// BuildCommand pipes query into the tool at toolPath using the quoting
// rules of os. Unknown OS values get the POSIX rules.
func BuildCommand(query, toolPath string, os models.OSType) string {
	if os == models.OSWindows {
		return `echo ` + windowsEscaper.Replace(query) + ` | "` + toolPath + `"`
	}
	return `echo "` + posixEscaper.Replace(query) + `" | "` + toolPath + `"`
}

// FileExistsProbe returns a command that prints ExistsMarker if path is a
// file on the remote host.
func FileExistsProbe(path string, os models.OSType) string {
	if os == models.OSWindows {
		return `if exist "` + path + `" echo ` + ExistsMarker
	}
	return `test -f "` + path + `" && echo ` + ExistsMarker
}

// ProbeFound reports whether probe output contains ExistsMarker.
func ProbeFound(output string) bool {
	return strings.Contains(output, ExistsMarker)
}

// DefaultToolPath is where the BigFix client installs QnA on each OS.
func DefaultToolPath(os models.OSType) string {
	switch os {
	case models.OSWindows:
		return `C:\Program Files (x86)\BigFix Enterprise\BES Client\QnA.exe`
	case models.OSMac:
		return "/Library/Application Support/BigFix/BES Agent/bin/QnA"
	default:
		return "/opt/BESClient/bin/QnA"
	}
}
