// Package app wires configuration into the concrete stores, clients and
// services shared by the server and worker binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/lapublica/platform/internal/assets"
	"github.com/lapublica/platform/internal/audit"
	"github.com/lapublica/platform/internal/cache"
	"github.com/lapublica/platform/internal/config"
	"github.com/lapublica/platform/internal/feeds"
	"github.com/lapublica/platform/internal/mailer"
	"github.com/lapublica/platform/internal/moderation"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/realtime"
	"github.com/lapublica/platform/internal/repository/postgres"
	"github.com/lapublica/platform/internal/service/billing"
	"github.com/lapublica/platform/internal/service/company"
	"github.com/lapublica/platform/internal/service/content"
	"github.com/lapublica/platform/internal/service/conversation"
	"github.com/lapublica/platform/internal/service/coupon"
	"github.com/lapublica/platform/internal/service/dashboard"
	"github.com/lapublica/platform/internal/service/groupoffer"
	"github.com/lapublica/platform/internal/service/lead"
	"github.com/lapublica/platform/internal/service/notification"
	"github.com/lapublica/platform/internal/service/offer"
	"github.com/lapublica/platform/internal/service/user"
)

// App holds the process-wide dependencies.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client // nil when Redis is not configured

	S3     *s3.Client // nil when no asset bucket is configured
	Mailer *mailer.Mailer
	Queue  *mailer.Queue // nil when email is sent inline
	Audit  audit.Trail

	Users         *user.Service
	Companies     *company.Service
	Billing       *billing.Service
	Offers        *offer.Service
	Coupons       *coupon.Service
	Conversations *conversation.Service
	Notifications *notification.Service
	GroupOffers   *groupoffer.Service
	Leads         *lead.Service
	Content       *content.Service
	Dashboard     *dashboard.Service

	// UserRepo resolves accounts without an actor for the auth layer.
	UserRepo *postgres.UserRepo
}

// SetupLogger installs the process logger from cfg.
func SetupLogger(cfg config.LoggingConfig) {
	logger.SetDefault(logger.New(logger.ParseLevel(cfg.Level), cfg.RedactPII))
}

// New connects to every configured backend and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)
	logger.Info("connected to database")

	a := &App{Config: cfg, DB: db}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = a.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unreachable, continuing without it", "error", err)
			a.Redis.Close()
			a.Redis = nil
		} else {
			logger.Info("connected to redis")
		}
	}

	awsCfg, err := loadAWS(ctx, cfg.AWS)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.buildServices(awsCfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func loadAWS(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	switch {
	case c.StaticCredentials():
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")))
	case c.GetProfile() != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.GetProfile()))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func (a *App) buildServices(awsCfg aws.Config) error {
	cfg := a.Config
	db := a.DB

	// Email
	renderer, err := mailer.NewRenderer(cfg.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}
	var sender mailer.Sender = mailer.LogSender{}
	if cfg.Email.SESEnabled() {
		sender = mailer.NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.Email.FromEmail, cfg.Email.FromName)
		logger.Info("email via SES", "from", cfg.Email.FromEmail)
	} else {
		logger.Warn("email.from_email not set, emails are logged only")
	}
	mailOpts := []mailer.Option{mailer.WithTimeout(cfg.Email.SendTimeout())}
	if cfg.Email.QueueURL != "" {
		a.Queue = mailer.NewQueue(sqs.NewFromConfig(awsCfg), cfg.Email.QueueURL)
		mailOpts = append(mailOpts, mailer.WithQueue(a.Queue))
		logger.Info("email queued through SQS", "queue", cfg.Email.QueueURL)
	}
	a.Mailer = mailer.New(renderer, sender, mailOpts...)

	// Images
	var (
		logoStore    company.Images
		contentStore content.Images
	)
	if cfg.Assets.Bucket != "" {
		a.S3 = s3.NewFromConfig(awsCfg)
		var cf assets.CloudFrontAPI
		if cfg.Assets.DistributionID != "" {
			cf = cloudfront.NewFromConfig(awsCfg)
		}
		store := assets.NewStore(a.S3, cf, assets.Config{
			Bucket:         cfg.Assets.Bucket,
			Region:         cfg.AWS.Region,
			CDNDomain:      cfg.Assets.CDNDomain,
			DistributionID: cfg.Assets.DistributionID,
			MaxBytes:       cfg.Assets.MaxUploadBytes,
			ResizeWidth:    cfg.Assets.ResizeWidth,
		})
		logoStore, contentStore = store, store
	} else {
		logger.Warn("assets.bucket not set, uploads are disabled")
	}

	// Audit
	if cfg.Audit.Table != "" {
		a.Audit = audit.NewDynamoTrail(dynamodb.NewFromConfig(awsCfg), cfg.Audit.Table)
	} else {
		a.Audit = audit.Nop{}
	}

	// Dashboard cache
	var dashCache dashboard.Cache
	if a.Redis != nil {
		dashCache = cache.NewRedis(a.Redis)
	}

	publisher := realtime.NewPGPublisher(db)
	users := postgres.NewUserRepo(db)
	companies := postgres.NewCompanyRepo(db)
	a.UserRepo = users

	a.Notifications = notification.NewService(postgres.NewNotificationRepo(db), publisher)
	notifier := a.Notifications

	a.Users = user.NewService(users, a.Mailer)
	a.Companies = company.NewService(companies, users, logoStore, notifier, a.Audit)
	a.Billing = billing.NewService(postgres.NewBillingRepo(db), notifier, a.Audit)
	a.Offers = offer.NewService(postgres.NewOfferRepo(db))
	a.Coupons = coupon.NewService(postgres.NewCouponRepo(db), users, a.Mailer, cfg.PublicBaseURL)
	a.Conversations = conversation.NewService(postgres.NewConversationRepo(db), users, notifier, publisher)
	a.GroupOffers = groupoffer.NewService(postgres.NewGroupOfferRepo(db), companies, users, notifier, a.Mailer, a.Audit)
	a.Leads = lead.NewService(postgres.NewLeadRepo(db), users, notifier, a.Mailer, a.Audit)
	a.Dashboard = dashboard.NewService(postgres.NewDashboardRepo(db), dashCache, cfg.Dashboard.CacheTTL())

	contentOpts := []content.Option{
		content.WithImages(contentStore),
		content.WithFetcher(feeds.NewFetcher(nil)),
	}
	if cfg.Moderation.Enabled {
		contentOpts = append(contentOpts, content.WithScreener(
			moderation.NewScreener(bedrockruntime.NewFromConfig(awsCfg), cfg.Moderation.ModelID)))
		logger.Info("content pre-screen enabled", "model", cfg.Moderation.ModelID)
	}
	a.Content = content.NewService(postgres.NewContentRepo(db), notifier, a.Audit, contentOpts...)
	return nil
}

// Close waits for inline email sends and closes connections.
func (a *App) Close() {
	if a.Mailer != nil {
		a.Mailer.Wait()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("redis close failed", "error", err)
		}
	}
	if err := a.DB.Close(); err != nil {
		logger.Warn("database close failed", "error", err)
	}
}
