/*
Copyright 2024 The Streambatch Authors.

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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsServer(t *testing.T) {
	ctx := context.Background()
	port := 2473
	ms := NewMetricsServer(port)
	shutdown, err := ms.Start(ctx)
	assert.NoError(t, err)
	defer func() { assert.NoError(t, shutdown(ctx)) }()

	assert.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/livez", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 3*time.Second, 50*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", port))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsServerHealthCheck(t *testing.T) {
	ctx := context.Background()
	port := 2474
	var mu sync.Mutex
	healthErr := errors.New("not ready")
	ms := NewMetricsServer(port, WithHealthCheckExecutor(func() error {
		mu.Lock()
		defer mu.Unlock()
		return healthErr
	}))
	shutdown, err := ms.Start(ctx)
	assert.NoError(t, err)
	defer func() { assert.NoError(t, shutdown(ctx)) }()

	assert.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/readyz", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusInternalServerError
	}, 3*time.Second, 50*time.Millisecond)

	mu.Lock()
	healthErr = nil
	mu.Unlock()
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/readyz", port))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
