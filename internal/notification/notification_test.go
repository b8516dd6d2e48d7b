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

package notification

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagerops/p2pqueue/config"
)

func TestSlackNotificationPostsErrorBlock(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		received <- string(body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	config.MockConfig(&config.Configuration{
		Notification: config.Notification{
			Slack: config.SlackWebhook{WebhookUrl: server.URL},
		},
	})

	SlackNotification(errors.New("archival store rejected batch"))

	body := <-received
	assert.Contains(t, body, "Error From P2P Queue")
	assert.Contains(t, body, "archival store rejected batch")
}

func TestNotifyErrorWithoutSlackConfigured(t *testing.T) {
	config.MockConfig(&config.Configuration{})

	// Only logs locally; must neither block nor panic.
	assert.NotPanics(t, func() {
		NotifyError(errors.New("settlement executor unreachable"))
	})
}

func TestNotifyErrorPostsToSlack(t *testing.T) {
	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	config.MockConfig(&config.Configuration{
		Notification: config.Notification{
			Slack: config.SlackWebhook{WebhookUrl: server.URL},
		},
	})

	NotifyError(errors.New("cleanup cycle failed"))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("slack notification was never delivered")
	}
}
