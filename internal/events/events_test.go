// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "unknown", Level(42).String())
}

func TestRecorder_Ordering(t *testing.T) {
	rec := NewRecorder()
	rec.Emit(Info("detect", "Searching"))
	rec.Emit(Warn("fetch", "No subdirectory"))
	rec.Emit(Info("detect", "Not found"))

	assert.Equal(t, []string{"Searching", "No subdirectory", "Not found"}, rec.Messages())
	assert.Len(t, rec.ByStep("detect"), 2)

	rec.Reset()
	assert.Empty(t, rec.Events())
}

func TestRecorder_ConcurrentEmit(t *testing.T) {
	rec := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Emit(Info("x", "y"))
		}()
	}
	wg.Wait()
	assert.Len(t, rec.Events(), 50)
}

func TestRecorder_NotifyDoesNotBlock(t *testing.T) {
	rec := NewRecorder()
	ch := make(chan Event, 1)
	rec.Notify(ch)

	rec.Emit(Info("a", "first"))
	rec.Emit(Info("a", "second"))

	got := <-ch
	assert.Equal(t, "first", got.Message)
	assert.Len(t, rec.Events(), 2)
}

func TestMulti_SkipsNil(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	sink := Multi(a, nil, b)
	sink.Emit(Info("gate", "ok"))

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestWithRunID(t *testing.T) {
	rec := NewRecorder()
	WithRunID(rec, "run-1").Emit(Error("setup", "boom"))

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "run-1", evs[0].RunID)
	assert.Equal(t, LevelError, evs[0].Level)
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSlogSink(logger).Emit(Warn("fetch", "Extraction root returned", "dir", "/tmp/x"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "fetch", line["step"])
	assert.Equal(t, "/tmp/x", line["dir"])
	assert.Equal(t, "Extraction root returned", line["msg"])
}

func TestEvent_Fields(t *testing.T) {
	e := Info("s", "m", "a", 1, "b", "two", "dangling")
	assert.Equal(t, map[string]string{"a": "1", "b": "two"}, e.Fields())
}

func TestOrDiscard(t *testing.T) {
	assert.Equal(t, Discard, OrDiscard(nil))
	rec := NewRecorder()
	assert.Equal(t, Sink(rec), OrDiscard(rec))
}
