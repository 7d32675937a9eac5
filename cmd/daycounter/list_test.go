package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"daycounter/internal/model"
)

func TestRenderList(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	soon := model.NewEvent("Exam", now.Add(26*time.Hour), now)
	soon.AddTask("revise")
	late := model.NewEvent("Report", now.Add(-2*time.Hour), now.Add(-time.Hour*48))
	archived := model.NewEvent("Hidden", now.Add(time.Hour), now)
	archived.IsArchived = true

	out := renderList([]model.Event{late, soon, archived}, now, time.UTC)

	assert.Contains(t, out, "Exam")
	assert.Contains(t, out, "1d 2h remaining")
	assert.Contains(t, out, "Overdue by 0d 2h 0m")
	assert.Contains(t, out, "0/1 tasks")
	assert.NotContains(t, out, "Hidden")
	assert.Less(t, strings.Index(out, "Exam"), strings.Index(out, "Report"))
}

func TestRenderList_Empty(t *testing.T) {
	assert.Contains(t, renderList(nil, time.Now(), time.UTC), "no active events")
}
