package reversion

import "strings"

// PatchControl rewrites the targeted fields of a Debian control block and
// returns the result together with whether anything changed. Untouched
// fields, including multi-line continuations, pass through verbatim; the
// output always has per-line trailing whitespace stripped and ends in
// exactly one newline.
func PatchControl(content string, cfg Config) (string, bool) {
	lines := strings.Split(content, "\n")
	modified := false

	oldPackageLine := "Package: " + cfg.PackageName
	for i, line := range lines {
		switch {
		case cfg.NewName != "" && line == oldPackageLine:
			lines[i] = "Package: " + cfg.NewName
			modified = true

		case strings.HasPrefix(line, "Version:"):
			// Only the literal source version within this line is
			// replaced, never elsewhere in the file
			if cfg.SourceVersion != "" && strings.Contains(line, cfg.SourceVersion) {
				lines[i] = strings.ReplaceAll(line, cfg.SourceVersion, cfg.NewVersion)
				modified = true
			}

		case strings.HasPrefix(line, "Distribution:"):
			newLine := "Distribution: " + cfg.NewSuite
			if line != newLine {
				lines[i] = newLine
				modified = true
			}
		}
	}

	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	result := strings.Join(lines, "\n")
	result = strings.TrimRight(result, "\n") + "\n"

	return result, modified
}
