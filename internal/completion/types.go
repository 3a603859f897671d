// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

// Request is the JSON body sent to the completion service.
type Request struct {
	Message string `json:"message"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
}
