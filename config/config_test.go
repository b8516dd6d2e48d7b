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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := &Configuration{
		Redis: RedisConfig{Dns: "localhost:6379"},
	}
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, "P2P Queue", cnf.ProjectName)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)

	assert.Equal(t, 3, cnf.Matching.MaxRetries)
	assert.Equal(t, 5*time.Minute, cnf.Matching.MatchTimeout())
	assert.Equal(t, 2*time.Minute, cnf.Matching.SettlementTimeout())
	assert.Equal(t, cnf.Matching.MatchTimeout()/5, cnf.Matching.SweepInterval())
	assert.Equal(t, 7*24*time.Hour, cnf.Matching.MaxAge())
	assert.Equal(t, 24*time.Hour, cnf.Matching.StatsLookback())
	assert.Equal(t, 5*time.Second, cnf.Matching.StatsCacheTTL())
	assert.Zero(t, cnf.Matching.MinimumMatchScore)

	assert.Equal(t, "new:matching", cnf.Queue.MatchingQueue)
	assert.Equal(t, "new:audit", cnf.Queue.AuditQueue)
	assert.Equal(t, "new:webhook", cnf.Queue.WebhookQueue)
	assert.Equal(t, 4, cnf.Queue.NumberOfQueues)
	assert.Equal(t, 3, cnf.Queue.MaxAuditRetries)
	assert.Equal(t, "5003", cnf.Queue.MonitoringPort)
}

func TestValidateRequiresRedisDns(t *testing.T) {
	cnf := &Configuration{}
	assert.Error(t, cnf.validateAndAddDefaults())
}

func TestValidateTrimsWhitespace(t *testing.T) {
	cnf := &Configuration{
		ProjectName: "  wagerops  ",
		Server:      ServerConfig{Port: " 8080 "},
		Redis:       RedisConfig{Dns: " localhost:6379 "},
	}
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, "wagerops", cnf.ProjectName)
	assert.Equal(t, "8080", cnf.Server.Port)
	assert.Equal(t, "localhost:6379", cnf.Redis.Dns)
}

func TestRateLimitDefaults(t *testing.T) {
	// Disabled entirely when neither knob is set.
	cnf := &Configuration{Redis: RedisConfig{Dns: "localhost:6379"}}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Nil(t, cnf.RateLimit.RequestsPerSecond)
	assert.Nil(t, cnf.RateLimit.Burst)

	// Burst derived from RPS.
	rps := 10.0
	cnf = &Configuration{
		Redis:     RedisConfig{Dns: "localhost:6379"},
		RateLimit: RateLimitConfig{RequestsPerSecond: &rps},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	require.NotNil(t, cnf.RateLimit.Burst)
	assert.Equal(t, 20, *cnf.RateLimit.Burst)

	// RPS derived from burst.
	burst := 30
	cnf = &Configuration{
		Redis:     RedisConfig{Dns: "localhost:6379"},
		RateLimit: RateLimitConfig{Burst: &burst},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	require.NotNil(t, cnf.RateLimit.RequestsPerSecond)
	assert.Equal(t, 15.0, *cnf.RateLimit.RequestsPerSecond)
}

func TestMockConfigAppliesDefaultsAndFetch(t *testing.T) {
	MockConfig(&Configuration{})

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, 3, cnf.Matching.MaxRetries)
	assert.Equal(t, 4, cnf.Queue.NumberOfQueues)
}
