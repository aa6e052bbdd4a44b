package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Dev bool `envconfig:"DEV" default:"false"`

	// DBPath is the bbolt database file. Empty means keep the cache in
	// memory only, which also disables the notifier.
	DBPath string `envconfig:"DB_PATH" default:"data/gcalcache.db"`

	GoogleCredentialsPath string   `envconfig:"GOOGLE_CREDENTIALS_PATH" default:"credentials.json"`
	CalendarIDs           []string `envconfig:"CALENDAR_IDS" default:"primary"`
	DefaultTimezone       string   `envconfig:"DEFAULT_TIMEZONE"`

	// EventSearch narrows full event syncs to matching events.
	EventSearch string `envconfig:"EVENT_SEARCH"`

	SyncInterval    time.Duration `envconfig:"SYNC_INTERVAL" default:"5m"`
	NotifyInterval  time.Duration `envconfig:"NOTIFY_INTERVAL" default:"1m"`
	NotifyLookahead time.Duration `envconfig:"NOTIFY_LOOKAHEAD" default:"1h"`
	NotifyChatIDs   []int64       `envconfig:"NOTIFY_CHAT_IDS"`
	TelegramToken   string        `envconfig:"TELEGRAM_TOKEN"`
}

func NewConfig(ctx context.Context) (*Config, error) {
	res := &Config{}

	err := envconfig.Process("", res)
	if err != nil {
		return nil, fmt.Errorf("envconfig process: %w", err)
	}

	if len(res.NotifyChatIDs) == 0 || res.Dev {
		return res, nil
	}
	res.TelegramToken, err = getSSMToken(ctx)
	if err != nil {
		return nil, err
	}

	if res.TelegramToken == "" {
		return nil, errors.New("telegram token is required")
	}

	return res, nil
}

func getSSMToken(ctx context.Context) (string, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}
	ssmClient := ssm.NewFromConfig(cfg)

	param, err := ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String("/gcalcached/prod/telegram-token"),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get SSM token: %w", err)
	}
	if param.Parameter.Value == nil {
		return "", errors.New("SSM Token not found")
	}

	return *param.Parameter.Value, nil
}
