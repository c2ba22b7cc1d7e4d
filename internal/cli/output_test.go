package cli

import (
	"bytes"
	"strings"
	"testing"
)

func newBufferedOutput(jsonMode bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var w, errW bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &w, errW: &errW}, &w, &errW
}

func TestOutput_Table(t *testing.T) {
	out, w, _ := newBufferedOutput(false)

	out.Print(
		[]string{"ID", "STATUS"},
		[][]string{{"run-1", "COMPLETED"}, {"run-2", "ERROR"}},
		nil,
	)

	got := w.String()
	for _, want := range []string{"ID", "STATUS", "run-1", "COMPLETED", "run-2", "ERROR"} {
		if !strings.Contains(got, want) {
			t.Errorf("output should contain %q, got:\n%s", want, got)
		}
	}
}

func TestOutput_JSONMode(t *testing.T) {
	out, w, _ := newBufferedOutput(true)

	out.Print([]string{"ID"}, [][]string{{"run-1"}}, map[string]string{"id": "run-1"})

	got := w.String()
	if !strings.Contains(got, `"id": "run-1"`) {
		t.Errorf("expected JSON output, got:\n%s", got)
	}
	if strings.Contains(got, "ID\t") {
		t.Error("json mode must not render a table")
	}
}

func TestOutput_Details(t *testing.T) {
	out, w, _ := newBufferedOutput(false)

	out.Details([][2]string{{"STATUS", "COMPLETED"}, {"FILES", "3/3"}}, nil)

	got := w.String()
	if !strings.Contains(got, "STATUS") || !strings.Contains(got, "COMPLETED") {
		t.Errorf("details output incomplete:\n%s", got)
	}
}

func TestOutput_MessagesGoToStderr(t *testing.T) {
	out, w, errW := newBufferedOutput(false)

	out.Success("done")
	out.Error("boom")

	if w.Len() != 0 {
		t.Error("messages must not pollute stdout")
	}
	got := errW.String()
	if !strings.Contains(got, "done") || !strings.Contains(got, "Error: boom") {
		t.Errorf("unexpected stderr output:\n%s", got)
	}
}
