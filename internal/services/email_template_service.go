package services

import (
	"context"
	"fmt"
	"github.com/radheshyamgupta01/TLF-sub000/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Default email templates used as fallback when not found in database
var defaultEmailTemplates = map[string]models.EmailTemplate{
	"welcome": {
		TemplateID: "welcome",
		Locale:     "en-US",
		Subject:    "Welcome to {{.app_name}}",
		Body:       "Hi {{.name}}, your {{.app_name}} account is ready.",
	},
	"inquiry_received": {
		TemplateID: "inquiry_received",
		Locale:     "en-US",
		Subject:    "New inquiry{{if .listing_title}} for {{.listing_title}}{{end}}",
		Body:       "{{.inquirer_name}} ({{.inquirer_email}}, {{.inquirer_phone}}) sent an inquiry:\n\n{{.message}}",
	},
	"inquiry_response": {
		TemplateID: "inquiry_response",
		Locale:     "en-US",
		Subject:    "Reply to your inquiry{{if .listing_title}} about {{.listing_title}}{{end}}",
		Body:       "Hi {{.inquirer_name}},\n\n{{.response}}",
	},
	"follow_up_reminder": {
		TemplateID: "follow_up_reminder",
		Locale:     "en-US",
		Subject:    "{{.count}} inquiries are waiting on a reply",
		Body:       "You have {{.count}} inquiries older than three days without a response. The oldest is from {{.oldest_name}}.",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

const emailTemplatesCollection = "email_templates"

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{
		db: db,
	}
}

// GetTemplate retrieves an email template by ID and locale
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	collection := s.db.Collection("email_templates")
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	var template models.EmailTemplate
	err := collection.FindOne(ctx, filter).Decode(&template)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// If template not found in DB, try to get from defaults
			if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
				return &defaultTemplate, nil
			}
			return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &template, nil
}

// SaveTemplate saves an email template to the database
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	collection := s.db.Collection("email_templates")
	filter := bson.M{
		"template_id": template.TemplateID,
		"locale":      template.Locale,
	}

	update := bson.M{"$set": template}
	opts := options.Update().SetUpsert(true)

	_, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}

	return nil
}

// DeleteTemplate deletes an email template from the database
func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	collection := s.db.Collection("email_templates")
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	_, err := collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}

	return nil
}
