package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	copyTo string
	logger *zap.Logger
}

// NewSMTPNotifier builds a notifier that mails the job owner. A non-empty
// copyTo receives a blind copy of every notice.
func NewSMTPNotifier(host string, port int, from, copyTo string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, copyTo: copyTo, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, notice port.FailureNotice) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	err := smtp.SendMail(addr, nil, n.from, n.recipients(notice), n.message(notice))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", notice.UserEmail),
			zap.String("job_id", notice.JobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", notice.UserEmail),
		zap.String("job_id", notice.JobID),
	)
	return nil
}

func (n *SMTPNotifier) recipients(notice port.FailureNotice) []string {
	to := []string{notice.UserEmail}
	if n.copyTo != "" && n.copyTo != notice.UserEmail {
		to = append(to, n.copyTo)
	}
	return to
}

func (n *SMTPNotifier) message(notice port.FailureNotice) []byte {
	subject := fmt.Sprintf("FIAP X - Frame Extraction Failed [Job %s]", notice.JobID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"We could not extract the frames of your video after %d attempt(s).\r\n\r\n"+
			"Job ID: %s\r\n"+
			"Video: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"Please try uploading the video again or contact support.\r\n\r\n"+
			"-- FIAP X Frame Extractor",
		notice.Attempts, notice.JobID, notice.VideoKey, notice.Reason,
	)

	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, notice.UserEmail, subject, body,
	))
}
