/*
Copyright 2025 WagerOps Authors.

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
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/wacul/ptr"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"P2P_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"P2P_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"P2P_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"P2P_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"P2P_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"P2P_SERVER_PORT"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"P2P_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"P2P_REDIS_SKIP_TLS_VERIFY"`
}

// MatchingConfig enumerates every tunable of the reconciliation engine with
// documented defaults. All *Ms fields are milliseconds.
type MatchingConfig struct {
	// MaxRetries bounds how often a pending item is re-queued after a match
	// timeout before it expires. Default 3.
	MaxRetries int `json:"max_retries" envconfig:"P2P_MATCHING_MAX_RETRIES"`
	// MatchTimeoutMs is how long an item may wait pending before the
	// supervisor escalates or expires it. Default 300000 (5 minutes).
	MatchTimeoutMs int64 `json:"match_timeout_ms" envconfig:"P2P_MATCHING_MATCH_TIMEOUT_MS"`
	// SettlementTimeoutMs is how long a match may sit with the settlement
	// executor before both sides are re-queued. Default 120000.
	SettlementTimeoutMs int64 `json:"settlement_timeout_ms" envconfig:"P2P_MATCHING_SETTLEMENT_TIMEOUT_MS"`
	// SweepIntervalMs drives the timeout supervisor cadence. Defaults to a
	// fifth of MatchTimeoutMs.
	SweepIntervalMs int64 `json:"sweep_interval_ms" envconfig:"P2P_MATCHING_SWEEP_INTERVAL_MS"`
	// PassIntervalMs drives the periodic matching pass in addition to the
	// per-submission trigger. Default 30000.
	PassIntervalMs int64 `json:"pass_interval_ms" envconfig:"P2P_MATCHING_PASS_INTERVAL_MS"`
	// CleanupIntervalMs drives the cleanup scheduler. Default 3600000 (1 hour).
	CleanupIntervalMs int64 `json:"cleanup_interval_ms" envconfig:"P2P_MATCHING_CLEANUP_INTERVAL_MS"`
	// MaxAgeMs is how long terminal records are retained before archival and
	// purge. Default 604800000 (7 days).
	MaxAgeMs int64 `json:"max_age_ms" envconfig:"P2P_MATCHING_MAX_AGE_MS"`
	// MinimumMatchScore is the acceptance threshold for a pairing. The
	// default 0 pairs whenever both pools are non-empty, deferring quality
	// concerns to priority escalation.
	MinimumMatchScore float64 `json:"minimum_match_score" envconfig:"P2P_MATCHING_MINIMUM_MATCH_SCORE"`
	// StatsLookbackMs is the trailing window for matched-pair counts and the
	// processing rate. Default 86400000 (24 hours).
	StatsLookbackMs int64 `json:"stats_lookback_ms" envconfig:"P2P_MATCHING_STATS_LOOKBACK_MS"`
	// StatsCacheTTLMs caches stats snapshots for dashboard polling. Default 5000.
	StatsCacheTTLMs int64 `json:"stats_cache_ttl_ms" envconfig:"P2P_MATCHING_STATS_CACHE_TTL_MS"`
}

func (m MatchingConfig) MatchTimeout() time.Duration      { return msToDuration(m.MatchTimeoutMs) }
func (m MatchingConfig) SettlementTimeout() time.Duration { return msToDuration(m.SettlementTimeoutMs) }
func (m MatchingConfig) SweepInterval() time.Duration     { return msToDuration(m.SweepIntervalMs) }
func (m MatchingConfig) PassInterval() time.Duration      { return msToDuration(m.PassIntervalMs) }
func (m MatchingConfig) CleanupInterval() time.Duration   { return msToDuration(m.CleanupIntervalMs) }
func (m MatchingConfig) MaxAge() time.Duration            { return msToDuration(m.MaxAgeMs) }
func (m MatchingConfig) StatsLookback() time.Duration     { return msToDuration(m.StatsLookbackMs) }
func (m MatchingConfig) StatsCacheTTL() time.Duration     { return msToDuration(m.StatsCacheTTLMs) }

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

type QueueConfig struct {
	MatchingQueue   string `json:"matching_queue" envconfig:"P2P_QUEUE_MATCHING_QUEUE"`
	AuditQueue      string `json:"audit_queue" envconfig:"P2P_QUEUE_AUDIT_QUEUE"`
	WebhookQueue    string `json:"webhook_queue" envconfig:"P2P_QUEUE_WEBHOOK_QUEUE"`
	NumberOfQueues  int    `json:"number_of_queues" envconfig:"P2P_QUEUE_NUMBER_OF_QUEUES"`
	MaxAuditRetries int    `json:"max_audit_retries" envconfig:"P2P_QUEUE_MAX_AUDIT_RETRIES"`
	MonitoringPort  string `json:"monitoring_port" envconfig:"P2P_QUEUE_MONITORING_PORT"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

// ArchiveConfig configures the S3 bucket the cleanup scheduler ships terminal
// records to before purging them from the store.
type ArchiveConfig struct {
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"P2P_ARCHIVE_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"P2P_ARCHIVE_AWS_SECRET_ACCESS_KEY"`
	S3Endpoint         string `json:"s3_endpoint" envconfig:"P2P_ARCHIVE_S3_ENDPOINT"`
	S3BucketName       string `json:"s3_bucket_name" envconfig:"P2P_ARCHIVE_S3_BUCKET_NAME"`
	S3Region           string `json:"s3_region" envconfig:"P2P_ARCHIVE_S3_REGION"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"P2P_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"P2P_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"P2P_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

// AuditConfig points at the external audit/compliance sink. Events are
// delivered at-least-once; see the audit worker.
type AuditConfig struct {
	Url     string            `json:"url" envconfig:"P2P_AUDIT_URL"`
	Headers map[string]string `json:"headers"`
}

// SettlementConfig points at the external settlement executor. Results come
// back asynchronously through the settlement-result endpoint.
type SettlementConfig struct {
	Url     string            `json:"url" envconfig:"P2P_SETTLEMENT_URL"`
	Headers map[string]string `json:"headers"`
}

type Configuration struct {
	ProjectName string `json:"project_name" envconfig:"P2P_PROJECT_NAME"`
	// EnableTelemetry turns on OTLP span export. Off by default; spans stay
	// local no-ops until a collector endpoint is configured.
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"P2P_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	Redis           RedisConfig      `json:"redis"`
	Matching        MatchingConfig   `json:"matching"`
	Queue           QueueConfig      `json:"queue"`
	Notification    Notification     `json:"notification"`
	Audit           AuditConfig      `json:"audit"`
	Settlement      SettlementConfig `json:"settlement"`
	Archive         ArchiveConfig    `json:"archive"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
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
	err = envconfig.Process("p2p", &cnf)
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
		return nil, errors.New("config not loaded from file. Create a json file called p2pqueue.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "P2P Queue"
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.Matching.applyDefaults()
	cnf.Queue.applyDefaults()

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = ptr.Int(defaultBurst)
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = ptr.Float64(defaultRPS)
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		cnf.RateLimit.CleanupIntervalSec = ptr.Int(10800) // 3 hours in seconds
	}

	return nil
}

func (m *MatchingConfig) applyDefaults() {
	if m.MaxRetries <= 0 {
		m.MaxRetries = 3
	}
	if m.MatchTimeoutMs <= 0 {
		m.MatchTimeoutMs = 300000
	}
	if m.SettlementTimeoutMs <= 0 {
		m.SettlementTimeoutMs = 120000
	}
	if m.SweepIntervalMs <= 0 {
		m.SweepIntervalMs = m.MatchTimeoutMs / 5
	}
	if m.PassIntervalMs <= 0 {
		m.PassIntervalMs = 30000
	}
	if m.CleanupIntervalMs <= 0 {
		m.CleanupIntervalMs = 3600000
	}
	if m.MaxAgeMs <= 0 {
		m.MaxAgeMs = 604800000
	}
	if m.MinimumMatchScore < 0 {
		m.MinimumMatchScore = 0
	}
	if m.StatsLookbackMs <= 0 {
		m.StatsLookbackMs = 86400000
	}
	if m.StatsCacheTTLMs <= 0 {
		m.StatsCacheTTLMs = 5000
	}
}

func (q *QueueConfig) applyDefaults() {
	if q.MatchingQueue == "" {
		q.MatchingQueue = "new:matching"
	}
	if q.AuditQueue == "" {
		q.AuditQueue = "new:audit"
	}
	if q.WebhookQueue == "" {
		q.WebhookQueue = "new:webhook"
	}
	if q.NumberOfQueues <= 0 {
		q.NumberOfQueues = 4
	}
	if q.MaxAuditRetries <= 0 {
		q.MaxAuditRetries = 3
	}
	if q.MonitoringPort == "" {
		q.MonitoringPort = "5003"
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.Matching.applyDefaults()
	mockConfig.Queue.applyDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
