// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion opens streaming requests against a completion service.
//
// The service accepts a JSON body {"message": "...", "state": "...",
// "city": "..."} and answers with a chunked body of newline-delimited JSON
// records. This package only opens the request and classifies failures;
// decoding the body is the job of package stream.
//
// # Key Types
//
//   - Client: HTTP client bound to one endpoint
//   - Config: Endpoint and timeouts, see DefaultConfig
//   - Request: The submitted message and optional location
//   - ClientError: Typed failure with an ErrorType
//
// # Usage
//
//	client := completion.NewClient(&completion.Config{Endpoint: "http://localhost:8000/chat"})
//	body, err := client.Open(ctx, completion.Request{Message: "Hi", State: "Texas", City: "Austin"})
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
//
// Streaming requests carry no overall timeout; cancel ctx to abort them.
// HeaderTimeout bounds only the wait for response headers.
package completion
