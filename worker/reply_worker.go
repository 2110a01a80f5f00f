package worker

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
)

// EnrollmentPauser pauses every active enrollment of one subscriber.
type EnrollmentPauser interface {
	PauseForEmail(ctx context.Context, email string) (int64, error)
}

// ReplyWorker polls the agency inbox over IMAP and pauses active sequence
// enrollments for subscribers who replied, so a live conversation is never
// interrupted by an automated follow-up.
type ReplyWorker struct {
	Enrollments EnrollmentPauser
	Logger      *log.Logger

	Host     string
	Port     int
	Username string
	Password string
	Interval time.Duration
}

func NewReplyWorker(enrollments EnrollmentPauser, logger *log.Logger, host string, port int, username, password string) *ReplyWorker {
	return &ReplyWorker{
		Enrollments: enrollments,
		Logger:      logger,
		Host:        host,
		Port:        port,
		Username:    username,
		Password:    password,
		Interval:    5 * time.Minute,
	}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	if rw.Host == "" {
		rw.Logger.Println("Reply worker disabled: no IMAP host configured")
		return
	}

	rw.Logger.Println("Reply worker started")
	ticker := time.NewTicker(rw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Println("Reply worker shutting down...")
			return
		case <-ticker.C:
			if err := rw.checkReplies(ctx); err != nil {
				rw.Logger.Printf("Reply check failed: %v", err)
			}
		}
	}
}

func (rw *ReplyWorker) checkReplies(ctx context.Context) error {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", rw.Host, rw.Port), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(rw.Username, rw.Password); err != nil {
		return fmt.Errorf("IMAP login failed: %w", err)
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return fmt.Errorf("IMAP search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier}}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		entity, err := message.Read(body)
		if err != nil && !message.IsUnknownCharset(err) {
			rw.Logger.Printf("Failed to parse message header: %v", err)
			continue
		}

		addr, err := mail.ParseAddress(entity.Header.Get("From"))
		if err != nil {
			continue
		}

		email := strings.ToLower(addr.Address)
		paused, err := rw.Enrollments.PauseForEmail(ctx, email)
		if err != nil {
			rw.Logger.Printf("Failed to pause enrollments for %s: %v", email, err)
			continue
		}
		if paused > 0 {
			rw.Logger.Printf("Paused %d enrollment(s) for %s after reply", paused, email)
		}
	}

	if err := <-done; err != nil {
		return fmt.Errorf("IMAP fetch failed: %w", err)
	}
	return nil
}
