package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/Sharoon166/reverie/internal/jobs"
)

// MailSendJob delivers transactional emails over SMTP.
type MailSendJob struct {
	Host    string
	Port    int
	From    string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewMailSendJob wires dependencies for the mail handler.
func NewMailSendJob(host string, port int, from string, logger *slog.Logger, metrics *jobmetrics.Metrics) *MailSendJob {
	return &MailSendJob{Host: host, Port: port, From: from, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeSendEmail tasks.
func (j *MailSendJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("mail send: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeSendEmail)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", j.From, payload.To, payload.Subject, payload.Body)
	addr := fmt.Sprintf("%s:%d", j.Host, j.Port)
	if err := smtp.SendMail(addr, nil, j.From, []string{payload.To}, []byte(msg)); err != nil {
		resultErr = err
		j.logger().Error("send email", slog.String("to", payload.To), slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return resultErr
}

func (j *MailSendJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeSendEmail))
	}
	return slog.Default().With(slog.String("job", TaskTypeSendEmail))
}

func (j *MailSendJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
