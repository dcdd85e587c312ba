package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"text/template"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/email"
	"estatehub/api/internal/models"
	"estatehub/api/internal/policy"
	"estatehub/api/internal/repository"
	"estatehub/api/internal/services"
)

// noticeData is what moderation templates can reference.
type noticeData struct {
	Title  string
	Slug   string
	Reason string
}

// HandleModerationNoticeTask tells the owner about an approve or reject
// decision. Notices for listings that were deleted or decided again since
// are dropped.
func (p *TaskProcessor) HandleModerationNoticeTask(ctx context.Context, t *asynq.Task) error {
	var payload services.ModerationNoticePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal moderation notice payload: %v: %w", err, asynq.SkipRetry)
	}

	listingID, err := primitive.ObjectIDFromHex(payload.ListingID)
	if err != nil {
		return fmt.Errorf("invalid listing id %q in payload: %w", payload.ListingID, asynq.SkipRetry)
	}
	action, err := policy.ParseAction(payload.Action)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	templateID, ok := noticeTemplate(action)
	if !ok {
		return fmt.Errorf("no notice for action %s: %w", action, asynq.SkipRetry)
	}

	listing, err := p.listings.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("Listing %s deleted before its %s notice was sent", payload.ListingID, action)
			return nil
		}
		return fmt.Errorf("failed to load listing %s: %w", payload.ListingID, err)
	}
	if target, _ := action.Target(); listing.Status != target {
		log.Printf("Listing %s is now %s, dropping stale %s notice", payload.ListingID, listing.Status, action)
		return nil
	}

	recipient := p.noticeRecipient(ctx, listing)
	tmpl, err := p.templates.GetTemplate(ctx, templateID, services.DefaultLocale)
	if err != nil {
		return fmt.Errorf("email template %s not found: %v: %w", templateID, err, asynq.SkipRetry)
	}

	data := noticeData{Title: listing.Title, Slug: listing.Slug, Reason: payload.Reason}
	if data.Reason == "" && listing.RejectionReason != nil {
		data.Reason = *listing.RejectionReason
	}
	subject, err := render(templateID+".subject", tmpl.Subject, data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	body, err := render(templateID+".body", tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	to := []string{recipient}
	raw := email.BuildMessage(p.cfg.SmtpFromAddress, to, subject, body, time.Now())
	if err := p.emailSender.Send(ctx, to, subject, raw); err != nil {
		return fmt.Errorf("failed to send %s notice for listing %s: %w", action, payload.ListingID, err)
	}
	log.Printf("Sent %s notice for listing %s to %s", action, payload.ListingID, recipient)
	return nil
}

func noticeTemplate(action policy.Action) (string, bool) {
	switch action {
	case policy.ActionApprove:
		return services.TemplateListingApproved, true
	case policy.ActionReject:
		return services.TemplateListingRejected, true
	case policy.ActionSuspend, policy.ActionSold, policy.ActionReactivate, policy.ActionEdit, policy.ActionDelete:
	}
	return "", false
}

// noticeRecipient prefers the owner's account address, then the listing's
// contact address, then the admin contact.
func (p *TaskProcessor) noticeRecipient(ctx context.Context, listing *models.Listing) string {
	owner, err := p.users.FindByID(ctx, listing.OwnerID)
	switch {
	case err == nil && owner.Email != "":
		return owner.Email
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		log.Printf("WARN: failed to load owner %s of listing %s: %v", listing.OwnerID.Hex(), listing.ID.Hex(), err)
	}
	if listing.Contact.Email != "" {
		return listing.Contact.Email
	}
	return p.cfg.AdminContactEmail
}

func render(name, text string, data noticeData) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
