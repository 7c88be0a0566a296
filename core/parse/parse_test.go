package parse

import "testing"

type shellArgs struct {
	Command string `json:"command"`
	Workdir string `json:"workdir"`
}

func TestParseStringAsValidJSON(t *testing.T) {
	args, err := ParseStringAs[shellArgs](`{"command":"ls -la","workdir":"/tmp"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.Command != "ls -la" || args.Workdir != "/tmp" {
		t.Errorf("unexpected result: %+v", args)
	}
}

func TestParseStringAsRepairsNearJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unquoted keys", `{command: "echo hi"}`, "echo hi"},
		{"single quotes", `{'command': 'echo hi'}`, "echo hi"},
		{"trailing comma", `{"command": "echo hi",}`, "echo hi"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			args, err := ParseStringAs[shellArgs](test.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if args.Command != test.want {
				t.Errorf("command = %q, want %q", args.Command, test.want)
			}
		})
	}
}

func TestParseStringAsFencedJSON(t *testing.T) {
	content := "```json\n{\"command\": \"pwd\"}\n```"

	args, err := ParseStringAs[shellArgs](content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.Command != "pwd" {
		t.Errorf("command = %q", args.Command)
	}
}

func TestParseStringAsString(t *testing.T) {
	got, err := ParseStringAs[string]("plain text, not JSON")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "plain text, not JSON" {
		t.Errorf("got %q", got)
	}
}

func TestParseStringAsMap(t *testing.T) {
	got, err := ParseStringAs[map[string]any](`{"a": 1, "b": "two"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["b"] != "two" {
		t.Errorf("got %+v", got)
	}
}

func TestParseStringAsUnrecoverable(t *testing.T) {
	_, err := ParseStringAs[shellArgs]("this is prose with no structure at all ((")
	if err == nil {
		t.Fatal("expected error for unparseable content")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"fence with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fence without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"unclosed fence left alone", "```json\n{\"a\":1}", "```json\n{\"a\":1}"},
		{"surrounding whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := StripCodeFence(test.content); got != test.want {
				t.Errorf("got %q, want %q", got, test.want)
			}
		})
	}
}
