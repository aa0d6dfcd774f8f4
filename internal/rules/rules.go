// Package rules implements the pure text transforms of the dictation
// pipeline: formatting-command matching and auto-replace substitution.
package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one configured phrase substitution. Matching is case-insensitive
// and replaces every occurrence; rules apply in configured order, so later
// rules see earlier rules' output.
type Rule struct {
	Key   string
	Value string
	re    *regexp.Regexp
}

// ParseAutoReplace parses a raw "key : value" per-line table. Escaped \n
// sequences in the value expand to newlines. Lines without exactly one
// colon are malformed and skipped rather than failing the whole table.
func ParseAutoReplace(raw string) []Rule {
	var parsed []Rule
	for _, line := range strings.Split(raw, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		value := strings.ReplaceAll(strings.TrimSpace(parts[1]), `\n`, "\n")
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(key))
		if err != nil {
			continue
		}
		parsed = append(parsed, Rule{Key: key, Value: value, re: re})
	}
	return parsed
}

// ApplyAutoReplace substitutes every rule in order.
func ApplyAutoReplace(text string, parsed []Rule) string {
	for _, rule := range parsed {
		text = rule.re.ReplaceAllLiteralString(text, rule.Value)
	}
	return text
}

// Action is the surface mutation a formatting command triggers.
type Action int

const (
	ActionDeleteWord Action = iota
	ActionClearAll
	ActionInsertLiteral
)

// Command is one entry of the formatting-command table.
type Command struct {
	Action  Action
	Literal string // for ActionInsertLiteral
}

// CommandTable maps a lowercase spoken phrase to its command.
type CommandTable map[string]Command

// ParseCommands builds a command table from configuration. Specs are
// "delete-word", "clear-all" or "insert:<literal>".
func ParseCommands(raw map[string]string) (CommandTable, error) {
	table := make(CommandTable, len(raw))
	for phrase, spec := range raw {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		switch {
		case spec == "delete-word":
			table[phrase] = Command{Action: ActionDeleteWord}
		case spec == "clear-all":
			table[phrase] = Command{Action: ActionClearAll}
		case strings.HasPrefix(spec, "insert:"):
			table[phrase] = Command{Action: ActionInsertLiteral, Literal: strings.TrimPrefix(spec, "insert:")}
		default:
			return nil, fmt.Errorf("unknown command spec %q for phrase %q", spec, phrase)
		}
	}
	return table, nil
}

// Match looks a transcript up in the table. The transcript must match a
// phrase exactly after trimming and lowercasing; partial matches never
// trigger commands.
func (t CommandTable) Match(text string) (Command, bool) {
	cmd, ok := t[strings.ToLower(strings.TrimSpace(text))]
	return cmd, ok
}

// ParseBlacklist splits a newline-separated substring pattern list.
func ParseBlacklist(raw string) []string {
	var sites []string
	for _, line := range strings.Split(raw, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			sites = append(sites, s)
		}
	}
	return sites
}

// Blacklisted reports whether location matches any configured pattern.
func Blacklisted(location string, sites []string) bool {
	for _, site := range sites {
		if strings.Contains(location, site) {
			return true
		}
	}
	return false
}
