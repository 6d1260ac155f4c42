package qna

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"remoteqna/internal/models"
)

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name  string
		query string
		tool  string
		os    models.OSType
		want  string
	}{
		{
			name:  "windows escapes quotes only",
			query: `say "hi"`,
			tool:  `C:\qna.exe`,
			os:    models.OSWindows,
			want:  `echo say \"hi\" | "C:\qna.exe"`,
		},
		{
			name:  "windows leaves dollar and backtick",
			query: "cost $5 `x`",
			tool:  `C:\qna.exe`,
			os:    models.OSWindows,
			want:  "echo cost $5 `x` | \"C:\\qna.exe\"",
		},
		{
			name:  "linux plain",
			query: "Windows of SSH Server",
			tool:  "/opt/BESClient/bin/QnA",
			os:    models.OSLinux,
			want:  `echo "Windows of SSH Server" | "/opt/BESClient/bin/QnA"`,
		},
		{
			name:  "linux escapes quote backtick dollar",
			query: "cost $5 `x` \"y\"",
			tool:  "/opt/qna",
			os:    models.OSLinux,
			want:  "echo \"cost \\$5 \\`x\\` \\\"y\\\"\" | \"/opt/qna\"",
		},
		{
			name:  "mac uses posix rules",
			query: `name of "$HOME"`,
			tool:  "/Library/QnA",
			os:    models.OSMac,
			want:  `echo "name of \"\$HOME\"" | "/Library/QnA"`,
		},
		{
			name:  "existing backslashes are kept",
			query: `a\b`,
			tool:  "/opt/qna",
			os:    models.OSLinux,
			want:  `echo "a\b" | "/opt/qna"`,
		},
		{
			name:  "empty query windows",
			query: "",
			tool:  "/opt/qna",
			os:    models.OSWindows,
			want:  `echo  | "/opt/qna"`,
		},
		{
			name:  "empty query linux",
			query: "",
			tool:  "/opt/qna",
			os:    models.OSLinux,
			want:  `echo "" | "/opt/qna"`,
		},
		{
			name:  "unknown os falls back to posix",
			query: "$x",
			tool:  "/opt/qna",
			os:    models.OSType("solaris"),
			want:  `echo "\$x" | "/opt/qna"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildCommand(tt.query, tt.tool, tt.os))
		})
	}
}

func TestBuildCommand_LinuxNoUnescapedSpecials(t *testing.T) {
	cmd := BuildCommand("cost $5 `x`", "/opt/qna", models.OSLinux)
	body := strings.TrimSuffix(strings.TrimPrefix(cmd, `echo "`), `" | "/opt/qna"`)
	for i, c := range body {
		if c == '$' || c == '`' || c == '"' {
			assert.True(t, i > 0 && body[i-1] == '\\', "unescaped %q at %d in %s", c, i, body)
		}
	}
}

func TestFileExistsProbe(t *testing.T) {
	assert.Equal(t, `if exist "C:\QnA.exe" echo EXISTS`, FileExistsProbe(`C:\QnA.exe`, models.OSWindows))
	assert.Equal(t, `test -f "/opt/qna" && echo EXISTS`, FileExistsProbe("/opt/qna", models.OSLinux))
	assert.Equal(t, `test -f "/opt/qna" && echo EXISTS`, FileExistsProbe("/opt/qna", models.OSMac))
}

func TestProbeFound(t *testing.T) {
	assert.True(t, ProbeFound("EXISTS\r\n"))
	assert.False(t, ProbeFound(""))
	assert.False(t, ProbeFound("exists"))
}

func TestDefaultToolPath(t *testing.T) {
	assert.Equal(t, "/opt/BESClient/bin/QnA", DefaultToolPath(models.OSLinux))
	assert.Contains(t, DefaultToolPath(models.OSWindows), `QnA.exe`)
	assert.Contains(t, DefaultToolPath(models.OSMac), "BES Agent")
}
