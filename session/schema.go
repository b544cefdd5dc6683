// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// FetchSchema retrieves a module's JSON schema description over plain
// HTTP GET. This is a read-only, out-of-band sibling of the binary
// WebSocket protocol: schema retrieval happens once, up front, to drive
// code generation or dynamic query building, and never touches the
// live subscription connection.
func FetchSchema(ctx context.Context, baseURL, moduleName string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/database/%s/schema?version=9", baseURL, moduleName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "session: build schema request")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "session: fetch schema")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "session: read schema response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("session: fetch schema: unexpected status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
