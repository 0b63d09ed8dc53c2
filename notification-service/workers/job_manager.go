package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"gear-rental/notification-service/services"
	"gear-rental/shared/config"
	"gear-rental/shared/models"
)

type JobType string

const (
	JobEmailNotification JobType = "email_notification"
	JobBookingReminder   JobType = "booking_reminder"
)

const (
	jobResultTTL = 24 * time.Hour
	popTimeout   = time.Second
)

type Job struct {
	ID            string            `json:"id"`
	Type          JobType           `json:"type"`
	Email         *services.Message `json:"email,omitempty"`
	Data          map[string]string `json:"data,omitempty"`
	ScheduledTime time.Time         `json:"scheduled_time"`
	CreatedAt     time.Time         `json:"created_at"`
	Attempts      int               `json:"attempts"`
	MaxAttempts   int               `json:"max_attempts"`
	Status        string            `json:"status"` // pending, processing, completed, failed
	Error         string            `json:"error,omitempty"`
}

type BookingSource interface {
	Get(ctx context.Context, id string) (*models.Booking, error)
	StartingOn(ctx context.Context, day time.Time) ([]models.Booking, error)
	MarkReminderSent(ctx context.Context, id string) error
}

type ProductSource interface {
	Get(ctx context.Context, id string) (models.Product, error)
}

type UserSource interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// Notifications is the part of the notification service the workers drive.
type Notifications interface {
	Deliver(ctx context.Context, msg services.Message) error
	SendBookingReminder(ctx context.Context, lang string, b models.Booking, p models.Product, u models.User) (services.Delivery, error)
}

type JobManager struct {
	config        *config.Config
	queue         jobQueue
	notifications Notifications
	bookings      BookingSource
	products      ProductSource
	users         UserSource
	sched         *cron.Cron
	now           func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewJobManager(cfg *config.Config, client *redis.Client, notifications Notifications,
	bookings BookingSource, products ProductSource, users UserSource) *JobManager {
	return newJobManager(cfg, newRedisQueue(client, cfg.Jobs.QueueKeyPrefix), notifications, bookings, products, users)
}

func newJobManager(cfg *config.Config, queue jobQueue, notifications Notifications,
	bookings BookingSource, products ProductSource, users UserSource) *JobManager {
	return &JobManager{
		config:        cfg,
		queue:         queue,
		notifications: notifications,
		bookings:      bookings,
		products:      products,
		users:         users,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

// Start launches the workers and the cron entries that promote scheduled jobs
// and queue booking reminders. Reminders need a storage driver shared with
// the gateway.
func (jm *JobManager) Start() error {
	jm.sched = cron.New()
	if _, err := jm.sched.AddFunc(jm.config.Jobs.PromoteSpec, jm.promoteScheduled); err != nil {
		return fmt.Errorf("invalid promote schedule %q: %w", jm.config.Jobs.PromoteSpec, err)
	}
	if jm.sharedStorage() {
		if _, err := jm.sched.AddFunc(jm.config.Jobs.ReminderSpec, func() {
			jm.ScheduleBookingReminders(context.Background())
		}); err != nil {
			return fmt.Errorf("invalid reminder schedule %q: %w", jm.config.Jobs.ReminderSpec, err)
		}
	} else {
		zap.S().Warnf("Booking reminders disabled: storage driver %q is private to this process", jm.config.Storage.Driver)
	}

	count := jm.config.Jobs.WorkerCount
	if count < 1 {
		count = 1
	}
	zap.S().Infof("Starting %d job workers", count)
	for i := 0; i < count; i++ {
		jm.wg.Add(1)
		go jm.work(fmt.Sprintf("worker-%d", i+1))
	}

	jm.sched.Start()
	zap.S().Info("All job workers started successfully")
	return nil
}

// sharedStorage reports whether bookings written by the gateway are visible
// here. A memory store is local to each process.
func (jm *JobManager) sharedStorage() bool {
	switch jm.config.Storage.Driver {
	case "redis", "postgres":
		return true
	}
	return false
}

func (jm *JobManager) Stop() {
	zap.S().Info("Stopping job manager...")
	if jm.sched != nil {
		<-jm.sched.Stop().Done()
	}
	close(jm.stopChan)
	jm.wg.Wait()
	zap.S().Info("Job manager stopped")
}

// QueueEmail queues msg for delivery by the workers.
func (jm *JobManager) QueueEmail(ctx context.Context, msg services.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	return jm.QueueJob(ctx, &Job{Type: JobEmailNotification, Email: &msg}, nil)
}

func (jm *JobManager) QueueJob(ctx context.Context, job *Job, scheduledTime *time.Time) (string, error) {
	now := jm.now()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.MaxAttempts = jm.config.Jobs.RetryAttempts
	job.Status = "pending"
	job.ScheduledTime = now
	if scheduledTime != nil {
		job.ScheduledTime = *scheduledTime
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	if job.ScheduledTime.After(now) {
		err = jm.queue.schedule(ctx, jobData, job.ScheduledTime)
	} else {
		err = jm.queue.push(ctx, jobData)
	}
	if err != nil {
		return "", fmt.Errorf("failed to queue job: %w", err)
	}

	zap.S().Infof("Queued job %s of type %s", job.ID, job.Type)
	return job.ID, nil
}

func (jm *JobManager) work(id string) {
	defer jm.wg.Done()
	zap.S().Infof("Worker %s started", id)

	for {
		select {
		case <-jm.stopChan:
			zap.S().Infof("Worker %s stopped", id)
			return
		default:
		}
		if !jm.processNext(context.Background(), id) {
			// Back off briefly on queue errors.
			select {
			case <-jm.stopChan:
			case <-time.After(popTimeout):
			}
		}
	}
}

// processNext pops and runs at most one job. It returns false when the queue
// itself failed.
func (jm *JobManager) processNext(ctx context.Context, workerID string) bool {
	jobData, err := jm.queue.pop(ctx, popTimeout)
	if err != nil {
		zap.S().Errorf("Worker %s: Error popping job: %v", workerID, err)
		return false
	}
	if jobData == nil {
		return true
	}

	var job Job
	if err := json.Unmarshal(jobData, &job); err != nil {
		zap.S().Errorf("Worker %s: Error unmarshaling job: %v", workerID, err)
		return true
	}
	jm.executeJob(ctx, workerID, &job)
	return true
}

func (jm *JobManager) executeJob(ctx context.Context, workerID string, job *Job) {
	zap.S().Infof("Worker %s: Processing job %s of type %s", workerID, job.ID, job.Type)

	job.Attempts++
	job.Status = "processing"

	var err error
	switch job.Type {
	case JobEmailNotification:
		err = jm.processEmailNotification(ctx, job)
	case JobBookingReminder:
		err = jm.processBookingReminder(ctx, job)
	default:
		err = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err != nil {
		job.Status = "failed"
		job.Error = err.Error()
		zap.S().Warnf("Worker %s: Job %s failed (attempt %d/%d): %v",
			workerID, job.ID, job.Attempts, job.MaxAttempts, err)

		if job.Attempts < job.MaxAttempts {
			jm.retryJob(ctx, job)
		} else {
			zap.S().Errorf("Worker %s: Job %s exceeded max attempts, marking as failed", workerID, job.ID)
		}
	} else {
		job.Status = "completed"
		job.Error = ""
		zap.S().Infof("Worker %s: Job %s completed successfully", workerID, job.ID)
	}

	jm.storeJobResult(ctx, job)
}

// retryJob reschedules job with a delay that grows with each attempt.
func (jm *JobManager) retryJob(ctx context.Context, job *Job) {
	delay := time.Duration(job.Attempts) * jm.config.Jobs.RetryDelay
	job.ScheduledTime = jm.now().Add(delay)
	job.Status = "pending"

	jobData, err := json.Marshal(job)
	if err != nil {
		zap.S().Errorf("Failed to marshal job %s for retry: %v", job.ID, err)
		return
	}
	if err := jm.queue.schedule(ctx, jobData, job.ScheduledTime); err != nil {
		zap.S().Errorf("Failed to reschedule job %s: %v", job.ID, err)
		return
	}
	zap.S().Infof("Retrying job %s in %v", job.ID, delay)
}

func (jm *JobManager) storeJobResult(ctx context.Context, job *Job) {
	jobData, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := jm.queue.storeResult(ctx, job.ID, jobData, jobResultTTL); err != nil {
		zap.S().Warnf("Failed to store result of job %s: %v", job.ID, err)
	}
}

func (jm *JobManager) promoteScheduled() {
	moved, err := jm.queue.promote(context.Background(), jm.now())
	if err != nil {
		zap.S().Errorf("Error promoting scheduled jobs: %v", err)
		return
	}
	if moved > 0 {
		zap.S().Debugf("Promoted %d scheduled jobs", moved)
	}
}

func (jm *JobManager) processEmailNotification(ctx context.Context, job *Job) error {
	if job.Email == nil {
		return errors.New("missing required email data")
	}
	return jm.notifications.Deliver(ctx, *job.Email)
}

func (jm *JobManager) processBookingReminder(ctx context.Context, job *Job) error {
	bookingID := job.Data["booking_id"]
	if bookingID == "" {
		return errors.New("missing booking ID")
	}

	booking, err := jm.bookings.Get(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to get booking: %w", err)
	}
	// Cancelled since the reminder was queued.
	if !booking.Status.Blocking() {
		return nil
	}

	product, err := jm.products.Get(ctx, booking.ProductID)
	if err != nil {
		return fmt.Errorf("failed to get product: %w", err)
	}
	user, err := jm.users.Get(ctx, booking.UserID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	_, err = jm.notifications.SendBookingReminder(ctx, jm.config.I18n.DefaultLanguage, *booking, product, *user)
	return err
}

// ScheduleBookingReminders queues a reminder for every confirmed booking that
// starts tomorrow and marks it so it is reminded only once.
func (jm *JobManager) ScheduleBookingReminders(ctx context.Context) int {
	tomorrow := jm.now().AddDate(0, 0, 1)
	bookings, err := jm.bookings.StartingOn(ctx, tomorrow)
	if err != nil {
		zap.S().Errorf("Error getting bookings for reminders: %v", err)
		return 0
	}

	queued := 0
	for _, b := range bookings {
		jobID, err := jm.QueueJob(ctx, &Job{
			Type: JobBookingReminder,
			Data: map[string]string{"booking_id": b.ID},
		}, nil)
		if err != nil {
			zap.S().Errorf("Error queueing reminder job: %v", err)
			continue
		}
		if err := jm.bookings.MarkReminderSent(ctx, b.ID); err != nil {
			zap.S().Errorf("Error marking reminder as sent: %v", err)
			continue
		}
		zap.S().Infof("Scheduled reminder job %s for booking %s", jobID, b.ID)
		queued++
	}
	return queued
}
