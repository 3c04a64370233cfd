package sse

import (
	"bufio"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterSetsHeadersAndFramesEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)

	require.NoError(t, w.Send(PhaseEvent(PhaseData, "fetching data")))
	require.NoError(t, w.Send(CompleteEvent("done", CompleteResult{Page: map[string]any{"ok": true}})))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: "))
	assert.Equal(t, 2, strings.Count(body, "data: "))
	assert.True(t, strings.HasSuffix(body, "\n\n"))
}

func TestReadFramesRoundTripsWriterOutput(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)
	require.NoError(t, w.Send(ToolCallEvent("list_classes", map[string]any{"teacherId": "t1"})))
	require.NoError(t, w.Send(ToolResultEvent("list_classes", ToolStatusOK)))
	require.NoError(t, w.Send(BlockStartEvent("b1", "kpi_grid")))
	require.NoError(t, w.Send(SlotDeltaEvent("b1", "summary", "Students improved")))
	require.NoError(t, w.Send(BlockCompleteEvent("b1")))
	require.NoError(t, w.Send(CompleteEvent("done", CompleteResult{Page: "page-data"})))

	events, err := ReadFrames(bufio.NewReader(strings.NewReader(rec.Body.String())))
	require.NoError(t, err)
	require.Len(t, events, 6)
	assert.Equal(t, EventToolCall, events[0].Type)
	assert.Equal(t, "list_classes", events[0].Tool)
	assert.Equal(t, EventToolResult, events[1].Type)
	assert.Equal(t, ToolStatusOK, events[1].Status)
	assert.Equal(t, EventBlockStart, events[2].Type)
	assert.Equal(t, EventSlotDelta, events[3].Type)
	assert.Equal(t, "Students improved", events[3].DeltaText)
	assert.Equal(t, EventBlockComplete, events[4].Type)
	assert.Equal(t, EventComplete, events[5].Type)
	assert.Equal(t, 100, events[5].Progress)
}

func TestDataErrorEventCarriesSuggestions(t *testing.T) {
	ev := DataErrorEvent("class", "class", "could not find that class", []Suggestion{
		{Label: "Form 1A", Value: "class-hk-f1a"},
		{Label: "Form 1B", Value: "class-hk-f1b"},
	})
	assert.Equal(t, EventDataError, ev.Type)
	require.Len(t, ev.Suggestions, 2)
	assert.Equal(t, "class-hk-f1a", ev.Suggestions[0].Value)
}

func TestCompleteErrorEventCarriesErrorType(t *testing.T) {
	ev := CompleteErrorEvent("backend unavailable", "data_fetch_error", "data_error")
	assert.Equal(t, EventComplete, ev.Type)
	details := ev.Details.(map[string]string)
	assert.Equal(t, "data_error", details["errorType"])
}

func TestRecorderCapturesEventsInOrder(t *testing.T) {
	rec := &Recorder{}
	require.NoError(t, rec.Send(PhaseEvent(PhaseData, "")))
	require.NoError(t, rec.Send(PhaseEvent(PhaseCompute, "")))
	require.NoError(t, rec.Send(PhaseEvent(PhaseCompose, "")))
	require.Len(t, rec.Events, 3)
	assert.Equal(t, PhaseData, rec.Events[0].Phase)
	assert.Equal(t, PhaseCompose, rec.Events[2].Phase)
}
