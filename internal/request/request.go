/*
Copyright 2024 Blnk Finance Authors.

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

package request

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound notification call.
const DefaultTimeout = 15 * time.Second

var client = &http.Client{Timeout: DefaultTimeout}

// ToJsonReq serializes payload into a buffer ready to be used as a request body.
func ToJsonReq(payload interface{}) (*bytes.Buffer, error) {
	c, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(c), nil
}

// Call sends req as JSON and, when response is non-nil, decodes the JSON body into it.
//
// Parameters:
// - req *http.Request: The prepared HTTP request to send.
// - response interface{}: Target for the decoded body. Pass nil for endpoints that answer with plain text.
//
// Returns:
// - *http.Response: The raw HTTP response. Its body has already been consumed.
// - error: Transport failures, a non-2xx status, or a body that does not decode.
func Call(req *http.Request, response interface{}) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return resp, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}
	if response == nil {
		return resp, nil
	}
	return resp, json.Unmarshal(body, response)
}

// BasicAuth returns the base64 "username:password" credential used in a Basic Authorization header.
func BasicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
