package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]int{"pending": 2}, func(io.Writer) {
		t.Fatal("text renderer must not run in JSON mode")
	})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Success(nil, func(w io.Writer) { fmt.Fprintln(w, "Pending: 2") })
	require.NoError(t, err)
	assert.Equal(t, "Pending: 2\n", buf.String())
}

func TestOutputFormatter_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error(ErrCodeStore, "disk full", "queue.db"))
	assert.Contains(t, buf.String(), "Error [E003]: disk full")
	assert.Contains(t, buf.String(), "Details: queue.db")
}

func TestOutputFormatter_Fail(t *testing.T) {
	cause := WrapExitError(ExitFailure, "movement rejected", errors.New("qty must be greater than 0"))

	buf := &bytes.Buffer{}
	text := &OutputFormatter{Format: "text", Writer: buf}
	assert.Same(t, cause, text.Fail(ErrCodeInvalid, nil, cause))
	assert.Zero(t, buf.Len())

	jsonOut := &OutputFormatter{Format: "json", Writer: buf}
	assert.Same(t, cause, jsonOut.Fail(ErrCodeInvalid, nil, cause))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
	assert.Equal(t, "movement rejected: qty must be greater than 0", resp.Error.Message)
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("opened %s", "queue.db")
	assert.Zero(t, out.Len())
	assert.Equal(t, "opened queue.db\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("hidden")
	assert.Equal(t, "opened queue.db\n", errOut.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "x"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
