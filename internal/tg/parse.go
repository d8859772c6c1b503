package tg

import "strings"

const (
	cmdStart   = "/start"
	cmdBalance = "/balance"
	cmdHistory = "/history"
)

// parseCommand splits "/cmd@bot arg" into ("/cmd", "arg"). Plain text yields
// an empty command and the trimmed text as argument.
func parseCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	fields := strings.Fields(text)
	cmd = strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return cmd, arg
}
