/*
Copyright 2024 FCG Cloud Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"PAYMENTS_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"PAYMENTS_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"PAYMENTS_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PAYMENTS_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"PAYMENTS_REDIS_DNS"`
}

// SqsConfig describes the inbound purchases queue and the outbound events
// queue. ServiceUrl overrides the endpoint for LocalStack and friends;
// when the access keys are empty the SDK's default credential chain is used.
type SqsConfig struct {
	ServiceUrl        string `json:"service_url" envconfig:"PAYMENTS_SQS_SERVICE_URL"`
	Region            string `json:"region" envconfig:"PAYMENTS_SQS_REGION"`
	AccessKey         string `json:"access_key" envconfig:"PAYMENTS_SQS_ACCESS_KEY"`
	SecretKey         string `json:"secret_key" envconfig:"PAYMENTS_SQS_SECRET_KEY"`
	PaymentsQueueUrl  string `json:"payments_queue_url" envconfig:"PAYMENTS_SQS_PAYMENTS_QUEUE_URL"`
	EventsQueueUrl    string `json:"events_queue_url" envconfig:"PAYMENTS_SQS_EVENTS_QUEUE_URL"`
	VisibilityTimeout int64  `json:"visibility_timeout" envconfig:"PAYMENTS_SQS_VISIBILITY_TIMEOUT"`
	WaitTimeSeconds   int64  `json:"wait_time_seconds" envconfig:"PAYMENTS_SQS_WAIT_TIME_SECONDS"`
}

type WorkerConfig struct {
	PollIntervalMs int `json:"poll_interval_ms" envconfig:"PAYMENTS_WORKER_POLL_INTERVAL_MS"`
	MaxMessages    int `json:"max_messages" envconfig:"PAYMENTS_WORKER_MAX_MESSAGES"`
	OutboxBatch    int `json:"outbox_batch" envconfig:"PAYMENTS_WORKER_OUTBOX_BATCH"`
}

// RateLimitConfig leaves rate limiting disabled unless both a rate and a
// burst are configured.
type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"PAYMENTS_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"PAYMENTS_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"PAYMENTS_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"PAYMENTS_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"PAYMENTS_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Sqs          SqsConfig        `json:"sqs"`
	Worker       WorkerConfig     `json:"worker"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("payments", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called payments.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "payments-svc"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Sqs.PaymentsQueueUrl = strings.TrimSpace(cnf.Sqs.PaymentsQueueUrl)
	cnf.Sqs.EventsQueueUrl = strings.TrimSpace(cnf.Sqs.EventsQueueUrl)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Sqs.VisibilityTimeout == 0 {
		cnf.Sqs.VisibilityTimeout = 60
	}
	if cnf.Sqs.WaitTimeSeconds == 0 {
		cnf.Sqs.WaitTimeSeconds = 20
	}
	if cnf.Worker.PollIntervalMs == 0 {
		cnf.Worker.PollIntervalMs = 5000
	}
	if cnf.Worker.MaxMessages == 0 {
		cnf.Worker.MaxMessages = 10
	}
	if cnf.Worker.OutboxBatch == 0 {
		cnf.Worker.OutboxBatch = 10
	}

	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
