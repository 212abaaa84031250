package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/notify"
	"github.com/repairflow/repairflow/internal/repository"
)

// reminderSchedule fires the nightly reminder at 20:00.
const reminderSchedule = "0 20 * * *"

// ReminderWorker pushes an evening reminder to technicians with a visit
// confirmed for the next day.
type ReminderWorker struct {
	tickets   repository.TicketRepository
	users     repository.UserRepository
	messenger notify.Messenger
	logger    *zap.Logger
	cron      *cron.Cron
}

// NewReminderWorker constructs the worker.
func NewReminderWorker(tickets repository.TicketRepository, users repository.UserRepository, messenger notify.Messenger, logger *zap.Logger) *ReminderWorker {
	return &ReminderWorker{
		tickets:   tickets,
		users:     users,
		messenger: messenger,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start schedules the nightly run.
func (w *ReminderWorker) Start() error {
	_, err := w.cron.AddFunc(reminderSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		w.Run(ctx)
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("reminder worker started", zap.String("schedule", reminderSchedule))
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (w *ReminderWorker) Stop() {
	<-w.cron.Stop().Done()
}

// Run sends reminders for every visit confirmed for tomorrow.
func (w *ReminderWorker) Run(ctx context.Context) {
	from := midnight(time.Now().AddDate(0, 0, 1))
	to := from.AddDate(0, 0, 1)

	tickets, err := w.tickets.ListScheduledBetween(ctx, from, to)
	if err != nil {
		w.logger.Error("list scheduled tickets failed", zap.Error(err))
		return
	}

	sent := 0
	for i := range tickets {
		if w.remind(ctx, &tickets[i]) {
			sent++
		}
	}
	w.logger.Info("reminder run finished", zap.Int("tickets", len(tickets)), zap.Int("sent", sent))
}

func (w *ReminderWorker) remind(ctx context.Context, ticket *domain.Ticket) bool {
	if ticket.AcceptedBy == nil || ticket.Schedule.Confirmed == nil {
		return false
	}
	technician, err := w.users.GetByID(ctx, *ticket.AcceptedBy)
	if err != nil || technician.LineUserID == nil || *technician.LineUserID == "" {
		return false
	}

	message := fmt.Sprintf("【明日提醒】%s\n時間：%s\n地址：%s",
		ticket.TicketNo,
		ticket.Schedule.Confirmed.Start.Format("01/02 15:04"),
		ticket.Address,
	)
	if err := w.messenger.Push(ctx, *technician.LineUserID, message); err != nil {
		w.logger.Warn("reminder push failed", zap.String("ticket_no", ticket.TicketNo), zap.Error(err))
		return false
	}
	return true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
