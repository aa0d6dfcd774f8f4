package rules

import "testing"

func TestParseAutoReplaceSkipsMalformed(t *testing.T) {
	parsed := ParseAutoReplace("comma : ,\nno separator line\n : empty key\ntime : 12:30\nnew line : \\n")
	if len(parsed) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(parsed))
	}
	if parsed[0].Key != "comma" || parsed[0].Value != "," {
		t.Fatalf("unexpected first rule: %+v", parsed[0])
	}
	if parsed[1].Value != "\n" {
		t.Fatalf("expected expanded newline, got %q", parsed[1].Value)
	}
}

func TestApplyAutoReplace(t *testing.T) {
	parsed := ParseAutoReplace("comma : ,")
	got := ApplyAutoReplace("hello comma world", parsed)
	if got != "hello , world" {
		t.Fatalf("expected %q, got %q", "hello , world", got)
	}
}

func TestApplyAutoReplaceCaseInsensitiveAllOccurrences(t *testing.T) {
	parsed := ParseAutoReplace("full stop : .")
	got := ApplyAutoReplace("one Full Stop two FULL STOP", parsed)
	if got != "one . two ." {
		t.Fatalf("got %q", got)
	}
}

func TestApplyAutoReplaceOrderMatters(t *testing.T) {
	// The second rule sees the first rule's output.
	parsed := ParseAutoReplace("alpha : beta\nbeta : gamma")
	got := ApplyAutoReplace("alpha", parsed)
	if got != "gamma" {
		t.Fatalf("got %q", got)
	}
}

func TestCommandTableExactMatchOnly(t *testing.T) {
	table, err := ParseCommands(map[string]string{
		"delete word": "delete-word",
		"clear all":   "clear-all",
		"new line":    "insert:\n",
	})
	if err != nil {
		t.Fatalf("parse commands: %v", err)
	}

	if cmd, ok := table.Match("  Clear ALL "); !ok || cmd.Action != ActionClearAll {
		t.Fatalf("expected clear-all match, got %+v ok=%v", cmd, ok)
	}
	if cmd, ok := table.Match("new line"); !ok || cmd.Literal != "\n" {
		t.Fatalf("expected insert literal, got %+v ok=%v", cmd, ok)
	}
	if _, ok := table.Match("please clear all"); ok {
		t.Fatal("partial phrase must not match a command")
	}
}

func TestParseCommandsRejectsUnknownSpec(t *testing.T) {
	if _, err := ParseCommands(map[string]string{"zap": "explode"}); err == nil {
		t.Fatal("expected error for unknown spec")
	}
}

func TestBlacklist(t *testing.T) {
	sites := ParseBlacklist("bank.example\n\n  mail.internal  \n")
	if len(sites) != 2 {
		t.Fatalf("expected 2 patterns, got %v", sites)
	}
	if !Blacklisted("https://bank.example/login", sites) {
		t.Fatal("expected match by substring")
	}
	if Blacklisted("https://docs.example", sites) {
		t.Fatal("unexpected match")
	}
	if Blacklisted("https://anything", nil) {
		t.Fatal("empty list must never match")
	}
}
