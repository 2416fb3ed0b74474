package controlplane

import (
	"regexp"
	"strings"
)

var (
	ansiCSI     = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)
	ansiOSC     = regexp.MustCompile(`\x1b\].*?(?:\x07|\x1b\\)`)
	ansiDCS     = regexp.MustCompile(`\x1bP.*?\x1b\\`)
	ansiCharset = regexp.MustCompile(`\x1b[()][0-9A-Za-z]`)
	ansiSingle  = regexp.MustCompile(`\x1b[78DEM>=]`)
)

// noisePatterns matches interactive-shell banners that show up in a
// freshly-spawned PTY and carry no information for a tool caller.
var noisePatterns = []string{
	"warning: fish could not",
	"This is often due to",
	"See 'help terminal-compatibility'",
	"man fish-terminal-compatibility",
	"This fish process will no longer",
	"Welcome to fish",
	"Type help for instructions",
	"friendly interactive shell",
}

// stripANSI removes CSI/OSC/DCS/charset-designator/single-char escape
// sequences, drops remaining non-printable bytes (keeping newline and
// space), and filters out blank lines, pure-prompt-glyph lines, shell
// prompt lines, and the noise patterns above.
func stripANSI(input string) string {
	s := ansiCSI.ReplaceAllString(input, "")
	s = ansiOSC.ReplaceAllString(s, "")
	s = ansiDCS.ReplaceAllString(s, "")
	s = ansiCharset.ReplaceAllString(s, "")
	s = ansiSingle.ReplaceAllString(s, "")

	var cleaned strings.Builder
	for _, r := range s {
		if r == '\n' || r == ' ' || (r >= ' ' && r != 0x7f) {
			cleaned.WriteRune(r)
		}
	}

	lines := strings.Split(cleaned.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			continue
		}
		if isNoiseLine(line) || isPromptGlyphLine(line) || isShellPromptLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isNoiseLine(line string) bool {
	for _, p := range noisePatterns {
		if strings.Contains(line, p) {
			return true
		}
	}
	return false
}

func isPromptGlyphLine(line string) bool {
	for _, r := range line {
		if r != '%' && r != '⏎' && r != ' ' && r != '\t' {
			return false
		}
	}
	return true
}

// isShellPromptLine matches `user@host path %`, `user@host:path$`,
// and `user@host path (branch)>` style prompts.
func isShellPromptLine(line string) bool {
	if !strings.Contains(line, "@") {
		return false
	}
	switch {
	case strings.HasSuffix(line, " %"),
		strings.HasSuffix(line, ">"),
		strings.HasSuffix(line, "$"),
		strings.Contains(line, " % "),
		strings.Contains(line, ")>"):
		return true
	}
	return false
}

// removeCommandEcho drops lines that are exactly the submitted
// command, the terminal's echo of it.
func removeCommandEcho(output, command string) string {
	cmd := strings.TrimSpace(command)
	lines := strings.Split(output, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == cmd {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// firstPathLine returns the first line beginning with "/", trimmed —
// used to parse pwd/cd output.
func firstPathLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "/") {
			return line
		}
	}
	return ""
}

// quoteSingle escapes a value for embedding inside single quotes in a
// shell command line, per the source's `'\''` escaping idiom.
func quoteSingle(value string) string {
	return strings.ReplaceAll(value, "'", `'\''`)
}
