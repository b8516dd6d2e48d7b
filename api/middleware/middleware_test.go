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
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/wagerops/p2pqueue/config"
)

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecretKeyAuthMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/stats", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doRequest(router *gin.Engine, path, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if secret != "" {
		req.Header.Set(KeyHeader, secret)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestSecretKeyAuthValidKey(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "dashboard-secret"},
	})

	resp := doRequest(authRouter(), "/stats", "dashboard-secret")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestSecretKeyAuthMissingKey(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "dashboard-secret"},
	})

	resp := doRequest(authRouter(), "/stats", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestSecretKeyAuthInvalidKey(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "dashboard-secret"},
	})

	resp := doRequest(authRouter(), "/stats", "wrong-secret")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestSecretKeyAuthUnconfigured(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{Secure: true},
	})

	resp := doRequest(authRouter(), "/stats", "anything")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestSecretKeyAuthSkipsHealthRoot(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "dashboard-secret"},
	})

	resp := doRequest(authRouter(), "/", "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRateLimitDisabledWhenUnset(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	conf, _ := config.Fetch()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(conf))
	r.GET("/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 20; i++ {
		resp := doRequest(r, "/stats", "")
		assert.Equal(t, http.StatusOK, resp.Code)
	}
}
