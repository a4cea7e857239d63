package notify

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	"mistrihub/internal/common/logger"
	"mistrihub/internal/common/metrics"
	"mistrihub/internal/models"
	"mistrihub/internal/store"
)

// SESService and SNSService mirror the AWS client methods we use, so tests
// can substitute mocks.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// UserContacts resolves a recipient's email and phone.
type UserContacts interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type Config struct {
	Workers      int
	QueueSize    int
	EmailEnabled bool
	FromEmail    string
	SMSEnabled   bool
}

// Dispatcher persists a notification row for every event and then pushes
// email (and SMS for high-priority types) through AWS. A bounded queue and
// a small worker pool keep the request path from ever waiting on AWS.
type Dispatcher struct {
	cfg           Config
	db            *sql.DB
	notifications *store.NotificationStore
	users         UserContacts
	sesClient     SESService
	snsClient     SNSService
	logger        logger.Logger

	queue chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

func NewDispatcher(cfg Config, db *sql.DB, users UserContacts, sesClient SESService, snsClient SNSService, log logger.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	d := &Dispatcher{
		cfg:           cfg,
		db:            db,
		notifications: store.NewNotificationStore(),
		users:         users,
		sesClient:     sesClient,
		snsClient:     snsClient,
		logger:        log.WithFields(map[string]interface{}{"component": "notify"}),
		queue:         make(chan Event, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Emit enqueues the event without blocking. If the queue is full the event
// is dropped and logged; the transition that produced it already committed.
func (d *Dispatcher) Emit(event Event) {
	select {
	case d.queue <- event:
	default:
		metrics.NotificationsEmitted.WithLabelValues(event.Type, "dropped").Inc()
		d.logger.Warn("notification queue full, dropping event", map[string]interface{}{
			"recipientId": event.RecipientID,
			"type":        event.Type,
		})
	}
}

// Close drains the queue and stops the workers.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for event := range d.queue {
		d.process(event)
	}
}

func (d *Dispatcher) process(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notification := &models.Notification{
		ID:          uuid.New().String(),
		RecipientID: event.RecipientID,
		Type:        event.Type,
		Title:       event.Title,
		Message:     event.Message,
		JobID:       event.JobID,
		Link:        event.Link,
		CreatedAt:   time.Now().UTC(),
	}

	if err := d.notifications.Insert(ctx, d.db, notification); err != nil {
		metrics.NotificationsEmitted.WithLabelValues(event.Type, "failed").Inc()
		d.logger.Error("notification insert failed", map[string]interface{}{
			"recipientId": event.RecipientID,
			"type":        event.Type,
			"error":       err.Error(),
		})
		return
	}

	status := "stored"
	if d.deliver(ctx, event) {
		status = "sent"
	}
	metrics.NotificationsEmitted.WithLabelValues(event.Type, status).Inc()
}

// deliver pushes the event over the enabled channels. Returns true if at
// least one channel accepted it.
func (d *Dispatcher) deliver(ctx context.Context, event Event) bool {
	if !d.cfg.EmailEnabled && !d.cfg.SMSEnabled {
		return false
	}

	user, err := d.users.GetByID(ctx, event.RecipientID)
	if err != nil {
		d.logger.Warn("recipient lookup failed", map[string]interface{}{
			"recipientId": event.RecipientID,
			"error":       err.Error(),
		})
		return false
	}

	sent := false
	if d.cfg.EmailEnabled && user.Email != "" {
		if err := d.sendEmail(ctx, user.Email, event.Title, renderBody(event)); err != nil {
			d.logger.Error("email send failed", map[string]interface{}{
				"recipientId": event.RecipientID,
				"error":       err.Error(),
			})
		} else {
			sent = true
		}
	}

	if d.cfg.SMSEnabled && user.Phone != "" && highPriority[event.Type] {
		if err := d.sendSMS(ctx, user.Phone, event.Message); err != nil {
			d.logger.Error("SMS send failed", map[string]interface{}{
				"recipientId": event.RecipientID,
				"error":       err.Error(),
			})
		} else {
			sent = true
		}
	}
	return sent
}

func (d *Dispatcher) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := d.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
				Html: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(d.cfg.FromEmail),
	})
	return err
}

func (d *Dispatcher) sendSMS(ctx context.Context, to, message string) error {
	_, err := d.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

// renderBody fills the email template placeholders from the event.
func renderBody(event Event) string {
	body := "{{message}}\n\n{{link}}"
	replacements := map[string]string{
		"{{message}}": event.Message,
		"{{link}}":    event.Link,
	}
	for placeholder, value := range replacements {
		body = strings.ReplaceAll(body, placeholder, value)
	}
	return strings.TrimSpace(body)
}
