// Package scheduler runs periodic engine maintenance. The diary sweeper
// closes out the previous day: the turn-triggered path writes a day's entry
// on the day's first turn, so the sweep regenerates it from the full day's
// turns shortly after midnight. The date-keyed upsert makes overlap between
// the two paths benign.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hrygo/empathia/plugin/ai/memory"
)

// ConversationLister supplies the conversations worth sweeping.
type ConversationLister interface {
	Conversations() []string
}

// DiarySweeper triggers diary generation shortly after local midnight.
type DiarySweeper struct {
	mem    *memory.Service
	lister ConversationLister
	loc    *time.Location
	cron   *cron.Cron
}

// NewDiarySweeper creates a sweeper. loc nil selects UTC.
func NewDiarySweeper(mem *memory.Service, lister ConversationLister, loc *time.Location) *DiarySweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &DiarySweeper{mem: mem, lister: lister, loc: loc}
}

// Start schedules the sweep at 00:05 local time every day.
func (s *DiarySweeper) Start() error {
	s.cron = cron.New(cron.WithLocation(s.loc))
	if _, err := s.cron.AddFunc("5 0 * * *", s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("diary sweeper started", "timezone", s.loc.String())
	return nil
}

// Stop halts the schedule, waiting for a running sweep.
func (s *DiarySweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep closes out the previous day for every known conversation and runs
// any diary pass still due for the current one.
func (s *DiarySweeper) Sweep() {
	ctx := context.Background()
	now := time.Now()
	for _, conversationID := range s.lister.Conversations() {
		if err := s.mem.SweepDiary(ctx, conversationID, now); err != nil {
			slog.Warn("diary sweep failed for conversation",
				"conversation_id", conversationID, "error", err)
		}
	}
}
