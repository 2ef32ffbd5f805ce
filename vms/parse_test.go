// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package vms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKeyValues(t *testing.T) {
	tcs := []struct {
		Description string
		Input       string
		Expected    map[string]string
	}{
		{
			Description: "Single pair",
			Input:       "sessionid=abc123",
			Expected:    map[string]string{"sessionid": "abc123"},
		},
		{
			Description: "Semicolon separated",
			Input:       "status=Running;percent=42",
			Expected:    map[string]string{"status": "Running", "percent": "42"},
		},
		{
			Description: "Line separated with whitespace",
			Input:       " Status = Done \r\npercent=100\n",
			Expected:    map[string]string{"status": "Done", "percent": "100"},
		},
		{
			Description: "Value keeps later equals signs",
			Input:       "url=http://h/x?a=b&c=d",
			Expected:    map[string]string{"url": "http://h/x?a=b&c=d"},
		},
		{
			Description: "Session id is not trimmed beyond the prefix",
			Input:       "sessionid=sessionid=x",
			Expected:    map[string]string{"sessionid": "sessionid=x"},
		},
		{
			Description: "Tokens without equals are ignored",
			Input:       "garbage;=nokey;ok=1",
			Expected:    map[string]string{"ok": "1"},
		},
		{
			Description: "Empty",
			Expected:    map[string]string{},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert.Equal(t, tc.Expected, ParseKeyValues(tc.Input))
		})
	}
}
