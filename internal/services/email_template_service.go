package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"estatehub/api/internal/models"
)

// Template ids for moderation notices.
const (
	TemplateListingApproved = "listing_approved"
	TemplateListingRejected = "listing_rejected"
)

// DefaultLocale is used when a notice carries no locale.
const DefaultLocale = "en-US"

// Default email templates used as fallback when not found in database
var defaultEmailTemplates = map[string]models.EmailTemplate{
	TemplateListingApproved: {
		TemplateID: TemplateListingApproved,
		Locale:     DefaultLocale,
		Subject:    `Your listing "{{.Title}}" was approved`,
		Body:       "Good news! \"{{.Title}}\" is now publicly visible.\n\nView it at /listings/{{.Slug}}",
	},
	TemplateListingRejected: {
		TemplateID: TemplateListingRejected,
		Locale:     DefaultLocale,
		Subject:    `Your listing "{{.Title}}" was rejected`,
		Body:       "\"{{.Title}}\" was not approved for publication.\n\nReason: {{.Reason}}\n\nYou can edit the listing and it will be reviewed again.",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

const emailTemplatesCollection = "email_templates"

// EmailTemplateService reads templates from Mongo and falls back to the
// built-in defaults.
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: db}
}

// GetTemplate retrieves an email template by ID and locale
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	var template models.EmailTemplate
	err := s.db.Collection(emailTemplatesCollection).FindOne(ctx, filter).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
				return &defaultTemplate, nil
			}
			return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &template, nil
}

// SaveTemplate upserts a template by id and locale.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	filter := bson.M{
		"template_id": template.TemplateID,
		"locale":      template.Locale,
	}
	update := bson.M{"$set": bson.M{
		"template_id": template.TemplateID,
		"locale":      template.Locale,
		"subject":     template.Subject,
		"body":        template.Body,
	}}

	_, err := s.db.Collection(emailTemplatesCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}
