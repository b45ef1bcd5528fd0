package notif

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/kelasi/core"
	"github.com/trezcool/kelasi/core/fiche"
	"github.com/trezcool/kelasi/core/user"
)

var nowFunc = time.Now // mockable

type (
	// ReviewerDirectory resolves the actor sets notifications target.
	// user.ServiceInterface satisfies it.
	ReviewerDirectory interface {
		GetByID(id string) (user.User, error)
		QueryReviewers() ([]user.User, error)
	}

	ServiceInterface interface {
		fiche.Notifier

		QueryAll() ([]Notification, error)
		QueryByRecipient(userID string) ([]Notification, error)
		GetByID(id string) (Notification, error)
		UnreadCount(userID string) (int, error)
		MarkRead(id string) (Notification, error)
	}

	service struct {
		repo    Repository
		users   ReviewerDirectory
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

var _ ServiceInterface = (*service)(nil) // interface compliance check

func NewService(repo Repository, users ReviewerDirectory, mailSvc core.EmailService, conf *core.Config, logger core.Logger) ServiceInterface {
	return &service{
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *service) QueryAll() ([]Notification, error) {
	return svc.repo.QueryAllNotifications()
}

func (svc *service) QueryByRecipient(userID string) ([]Notification, error) {
	return svc.repo.QueryNotificationsByRecipient(userID)
}

func (svc *service) GetByID(id string) (Notification, error) {
	return svc.repo.GetNotificationByID(id)
}

// UnreadCount is a pure count over the log at call time.
func (svc *service) UnreadCount(userID string) (int, error) {
	notifs, err := svc.repo.QueryNotificationsByRecipient(userID)
	if err != nil {
		return 0, err
	}
	var count int
	for _, n := range notifs {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (svc *service) MarkRead(id string) (Notification, error) {
	return svc.repo.MarkNotificationRead(id)
}

// fiche.Notifier implementation

func (svc *service) FicheCreated(f fiche.Fiche) {
	svc.append(Notification{
		Type:      TypeInfo,
		Message:   fmt.Sprintf("Fiche %q created", f.Title),
		Recipient: f.CreatedBy,
		Link:      fichePath(f.ID),
		FicheID:   f.ID,
	})
}

func (svc *service) FicheStatusChanged(f fiche.Fiche, oldStatus fiche.Status, actor fiche.Actor) {
	switch f.Status {
	case fiche.StatusPending:
		msg := fmt.Sprintf("Fiche %q submitted for review by %s", f.Title, actor.Name)
		if oldStatus == fiche.StatusRejected {
			msg = fmt.Sprintf("Fiche %q resubmitted for review by %s", f.Title, actor.Name)
		}
		reviewers, err := svc.users.QueryReviewers()
		if err != nil {
			svc.logger.Error(fmt.Sprintf("notif: querying reviewers: %v", err), err)
			return
		}
		for _, reviewer := range reviewers {
			if reviewer.ID == actor.ID {
				continue
			}
			svc.append(Notification{
				Type:      TypeInfo,
				Message:   msg,
				Recipient: reviewer.ID,
				Link:      fichePath(f.ID),
				FicheID:   f.ID,
			})
			svc.sendFicheMail(reviewer, "fiche-submitted", f, actor, "")
		}

	case fiche.StatusValidated:
		svc.append(Notification{
			Type:      TypeSuccess,
			Message:   fmt.Sprintf("Fiche %q validated by %s", f.Title, actor.Name),
			Recipient: f.CreatedBy,
			Link:      fichePath(f.ID),
			FicheID:   f.ID,
		})
		svc.mailAuthor(f, "fiche-validated", actor, "")

	case fiche.StatusRejected:
		var comment string
		if len(f.Comments) > 0 {
			comment = f.Comments[len(f.Comments)-1].Text
		}
		svc.append(Notification{
			Type:      TypeWarning,
			Message:   fmt.Sprintf("Fiche %q rejected by %s: %s", f.Title, actor.Name, comment),
			Recipient: f.CreatedBy,
			Link:      fichePath(f.ID),
			FicheID:   f.ID,
		})
		svc.mailAuthor(f, "fiche-rejected", actor, comment)
	}
}

func (svc *service) FicheCommented(f fiche.Fiche, c fiche.Comment, actor fiche.Actor) {
	msg := fmt.Sprintf("New comment on fiche %q by %s", f.Title, actor.Name)

	if actor.ID != f.CreatedBy {
		svc.append(Notification{
			Type:      TypeInfo,
			Message:   msg,
			Recipient: f.CreatedBy,
			Link:      fichePath(f.ID),
			FicheID:   f.ID,
		})
		return
	}

	reviewers, err := svc.users.QueryReviewers()
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notif: querying reviewers: %v", err), err)
		return
	}
	for _, reviewer := range reviewers {
		svc.append(Notification{
			Type:      TypeInfo,
			Message:   msg,
			Recipient: reviewer.ID,
			Link:      fichePath(f.ID),
			FicheID:   f.ID,
		})
	}
}

func (svc *service) FichesDeleted(ids ...string) {
	if err := svc.repo.DeleteNotificationsByFicheID(ids...); err != nil {
		svc.logger.Error(fmt.Sprintf("notif: invalidating notifications: %v", err), err)
	}
}

// append appends to the log in event order; entries are never reordered nor
// deduplicated.
func (svc *service) append(n Notification) {
	n.ID = uuid.New().String()
	n.CreatedAt = nowFunc().UTC()
	if _, err := svc.repo.CreateNotification(n); err != nil {
		svc.logger.Error(fmt.Sprintf("notif: appending notification: %v", err), err)
	}
}

type ficheMailData struct {
	RecipientName string
	ActorName     string
	FicheTitle    string
	FichePath     string
	Comment       string
}

func (svc *service) mailAuthor(f fiche.Fiche, template string, actor fiche.Actor, comment string) {
	author, err := svc.users.GetByID(f.CreatedBy)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notif: finding fiche author: %v", err), err)
		return
	}
	svc.sendFicheMail(author, template, f, actor, comment)
}

func (svc *service) sendFicheMail(to user.User, template string, f fiche.Fiche, actor fiche.Actor, comment string) {
	if svc.mailSvc == nil || !svc.conf.SendNotifEmails || to.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: to.Name, Address: to.Email}},
		Subject:      fmt.Sprintf("Fiche pédagogique : %s", f.Title),
		TemplateName: template,
		TemplateData: ficheMailData{
			RecipientName: to.Name,
			ActorName:     actor.Name,
			FicheTitle:    f.Title,
			FichePath:     fichePath(f.ID),
			Comment:       comment,
		},
	})
}

func fichePath(id string) string {
	return "/fiches/" + id
}
