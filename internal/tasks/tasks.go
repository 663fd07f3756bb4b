package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg" // For encoding JPEG
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/radheshyamgupta01/TLF-sub000/internal/config"
	"github.com/radheshyamgupta01/TLF-sub000/internal/email"
	"github.com/radheshyamgupta01/TLF-sub000/internal/services"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery    = "email:deliver"
	TypeImageProcess     = "image:process"
	TypeFollowUpScan     = "inquiry:followup:scan"
	TypeFollowUpDispatch = "inquiry:followup:dispatch"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
		// Add Password, DB if needed from rdb.Options()
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// Enqueuer is the subset of asynq.Client used by task handlers that fan out
// further tasks. Satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	listingService       services.IListingService
	inquiryService       services.IInquiryService
	userService          services.IUserService
	emailTemplateService services.IEmailTemplateService
	s3Client             *s3.Client
	taskClient           Enqueuer
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	listingService services.IListingService,
	inquiryService services.IInquiryService,
	userService services.IUserService,
	emailTemplateService services.IEmailTemplateService,
	s3Client *s3.Client,
	taskClient Enqueuer,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		listingService:       listingService,
		inquiryService:       inquiryService,
		userService:          userService,
		emailTemplateService: emailTemplateService,
		s3Client:             s3Client,
		taskClient:           taskClient,
	}
}

// SetupServer configures and returns an Asynq server instance.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) *asynq.Server {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
		// Add Password, DB if needed
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			// Specify different queues for different task types based on worker mode
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5, // Separate queue for images
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				// Log the error
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	// Register handlers based on worker type
	mux := asynq.NewServeMux()

	if isBgWorker { // Register handlers for the main background worker
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeFollowUpScan, processor.HandleFollowUpScanTask)
		mux.HandleFunc(TypeFollowUpDispatch, processor.HandleFollowUpDispatchTask)
		fmt.Println("Registered background task handlers (email & follow-up scan).")

		// Periodically kick off the reminder sweep. The scheduler only emits
		// dispatch tasks; the server above does the actual work.
		scheduler := asynq.NewScheduler(serverOpt, &asynq.SchedulerOpts{Location: time.UTC})
		if _, err := scheduler.Register(processor.cfg.FollowUpScanSchedule, asynq.NewTask(TypeFollowUpDispatch, nil)); err != nil {
			log.Fatalf("Could not register follow-up dispatch schedule %q: %v", processor.cfg.FollowUpScanSchedule, err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Could not start Asynq scheduler: %v", err)
		}
		fmt.Printf("Scheduled follow-up dispatch (%s).\n", processor.cfg.FollowUpScanSchedule)
	}

	if isImageWorker { // Register handlers for the image processing worker
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		fmt.Println("Registered image processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		// API mode doesn't run a task server, but could potentially enqueue tasks
		fmt.Println("Running in API mode, no task server started.")
		return nil
	}

	// Start the server with the configured mux
	if err := srv.Run(mux); err != nil {
		log.Fatalf("Could not run Asynq server: %v", err)
	}

	return srv
}

// --- Task Handlers ---

// EmailTaskPayload is the email delivery task payload.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"` // Optional locale
	Data       map[string]interface{} `json:"data"`
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	fmt.Printf("Sending email task: To=%s, Template=%s\n", payload.To, payload.TemplateID)

	// Determine locale (use default if not provided)
	locale := payload.Locale
	if locale == "" {
		locale = "en-US"
	}

	// Get Email Template from DB
	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		// Non-retryable if template not found
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	// Simple placeholder replacement (replace {{.key}})
	subjectRendered := tmpl.Subject
	bodyRendered := tmpl.Body
	for key, val := range payload.Data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		valueStr := fmt.Sprintf("%v", val) // Basic string conversion
		subjectRendered = strings.ReplaceAll(subjectRendered, placeholder, valueStr)
		bodyRendered = strings.ReplaceAll(bodyRendered, placeholder, valueStr)
	}

	// Construct the raw email message including headers
	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	// Basic email structure with essential headers.
	// Note: Proper MIME encoding for HTML or attachments would be more complex.
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subjectRendered))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n") // End of headers
	sb.WriteString(bodyRendered)
	sb.WriteString("\r\n")

	rawMessage := []byte(sb.String())

	err = p.emailSender.Send(ctx, []string{payload.To}, subjectRendered, rawMessage)
	if err != nil {
		fmt.Printf("Email sending failed (will retry?): %v\n", err)
		return err
	}

	fmt.Printf("Email task processed successfully: To=%s, Template=%s\n", payload.To, payload.TemplateID)
	return nil
}

// ImageTaskPayload is the image normalization task payload.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	ListingID string `json:"listing_id"`
}

func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	listingID, err := utils.ParseSixID(payload.ListingID)
	if err != nil {
		log.Printf("Invalid ListingID in image task payload: %s", payload.ListingID)
		return fmt.Errorf("invalid listing ID in payload: %w", asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s, ListingID=%s\n", payload.S3Key, payload.ListingID)

	// 1. Download image from S3
	getObjectOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		log.Printf("Error getting object %s from S3: %v", payload.S3Key, err)
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		log.Printf("Error reading image object body for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("failed to read image data: %w", err)
	}

	// Check initial size before decoding (more efficient)
	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	// 2. Check dimensions
	maxWidth := uint(p.cfg.ImageMaxDimension)
	maxHeight := uint(p.cfg.ImageMaxDimension)
	needsResize := uint(img.Bounds().Dx()) > maxWidth || uint(img.Bounds().Dy()) > maxHeight

	processedImageKey := payload.S3Key
	var processedImageData []byte
	contentType := *getObjectOutput.ContentType

	// 3. Resize if needed
	if needsResize {
		log.Printf("Resizing image %s (original: %dx%d, max: %dx%d)", payload.S3Key, img.Bounds().Dx(), img.Bounds().Dy(), maxWidth, maxHeight)
		resizedImg := resize.Thumbnail(maxWidth, maxHeight, img, resize.Lanczos3)
		var buf bytes.Buffer
		err = jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85})
		if err != nil {
			log.Printf("Error encoding resized image %s: %v", payload.S3Key, err)
			return fmt.Errorf("failed to re-encode resized image: %w", err)
		}
		processedImageData = buf.Bytes()
		contentType = "image/jpeg" // Output is JPEG
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())

		// Check size again after resizing/re-encoding
		if int64(len(processedImageData)) > maxSizeBytes {
			log.Printf("Resized image %s still exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(processedImageData), maxSizeBytes)
			return fmt.Errorf("resized image still exceeds max size: %w", asynq.SkipRetry)
		}

	} else {
		processedImageData = imgData
	}

	// 4. Upload processed image (overwrite original)
	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(processedImageKey),
		Body:        bytes.NewReader(processedImageData),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Printf("Error uploading processed image %s to S3: %v", processedImageKey, err)
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	// 5. Update Listing document
	err = p.listingService.AddImageToListing(ctx, listingID, processedImageKey)
	if err != nil {
		log.Printf("Error adding image key %s to listing %s: %v", processedImageKey, payload.ListingID, err)
		return fmt.Errorf("failed to update listing with processed image: %w", err)
	}

	log.Printf("Image task processed successfully: Key=%s, ListingID=%s", processedImageKey, payload.ListingID)
	return nil
}

// HandleFollowUpDispatchTask fans the periodic reminder sweep out into one
// scan task per listing owner with stale inquiries.
func (p *TaskProcessor) HandleFollowUpDispatchTask(ctx context.Context, t *asynq.Task) error {
	owners, err := p.inquiryService.ListOwnersNeedingFollowUp(ctx)
	if err != nil {
		log.Printf("Error listing owners for follow-up dispatch: %v", err)
		return err
	}

	for _, ownerID := range owners {
		payloadBytes, _ := json.Marshal(FollowUpScanPayload{ListingOwnerID: ownerID.String()})
		scan := asynq.NewTask(TypeFollowUpScan, payloadBytes)
		if _, err := p.taskClient.EnqueueContext(ctx, scan); err != nil {
			log.Printf("ERROR enqueuing follow-up scan for owner %s: %v", ownerID.String(), err)
			return err
		}
	}

	log.Printf("Follow-up dispatch: queued scans for %d owners.", len(owners))
	return nil
}

// FollowUpScanPayload identifies the listing owner whose leads should be scanned.
type FollowUpScanPayload struct {
	ListingOwnerID string `json:"listing_owner_id"`
}

// HandleFollowUpScanTask finds stale unanswered inquiries for one listing owner
// and sends them a single reminder email listing the leads that need attention.
func (p *TaskProcessor) HandleFollowUpScanTask(ctx context.Context, t *asynq.Task) error {
	var payload FollowUpScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal follow-up scan payload: %v: %w", err, asynq.SkipRetry)
	}

	ownerID, err := utils.ParseSixID(payload.ListingOwnerID)
	if err != nil {
		log.Printf("Invalid ListingOwnerID in follow-up scan payload: %s", payload.ListingOwnerID)
		return fmt.Errorf("invalid listing owner ID in payload: %w", asynq.SkipRetry)
	}

	owner, err := p.userService.FindByID(ctx, ownerID)
	if err != nil {
		log.Printf("Error fetching owner %s for follow-up scan: %v", payload.ListingOwnerID, err)
		var nfErr *services.NotFoundError
		if errors.As(err, &nfErr) {
			return fmt.Errorf("listing owner not found: %w", asynq.SkipRetry)
		}
		return err
	}

	inquiries, err := p.inquiryService.FindNeedingFollowUp(ctx, ownerID)
	if err != nil {
		log.Printf("Error scanning inquiries for owner %s: %v", payload.ListingOwnerID, err)
		return err
	}

	if len(inquiries) == 0 {
		log.Printf("Follow-up scan for owner %s: nothing pending.", payload.ListingOwnerID)
		return nil
	}

	now := time.Now().UTC()
	names := make([]string, 0, len(inquiries))
	for _, inq := range inquiries {
		names = append(names, fmt.Sprintf("%s (%s)", inq.InquirerName, inq.TimeAgo(now)))
	}

	payloadBytes, _ := json.Marshal(EmailTaskPayload{
		To:         owner.Email,
		TemplateID: "follow_up_reminder",
		Data: map[string]interface{}{
			"name":      owner.Name,
			"count":     len(inquiries),
			"inquirers": strings.Join(names, ", "),
		},
	})
	reminder := asynq.NewTask(TypeEmailDelivery, payloadBytes)
	if _, err := p.taskClient.EnqueueContext(ctx, reminder); err != nil {
		log.Printf("ERROR enqueuing follow-up reminder email for owner %s: %v", payload.ListingOwnerID, err)
		return err
	}

	log.Printf("Follow-up scan for owner %s: reminded about %d inquiries.", payload.ListingOwnerID, len(inquiries))
	return nil
}
