// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/warden-auth/warden/internal/auth"
)

func TestReasonOf(t *testing.T) {
	tests := []struct {
		err     error
		reason  auth.Reason
		session bool
	}{
		{nil, auth.ReasonNone, false},
		{oops.Code(auth.CodeCredentialsInvalid).Errorf("x"), auth.ReasonCredentialsInvalid, false},
		{oops.Code(auth.CodeTokenInvalid).Errorf("x"), auth.ReasonTokenInvalid, true},
		{oops.Code(auth.CodeTokenExpired).Errorf("x"), auth.ReasonTokenExpired, true},
		{oops.Code(auth.CodeSessionNotFound).Errorf("x"), auth.ReasonSessionNotFound, true},
		{oops.Code(auth.CodeUserUnavailable).Errorf("x"), auth.ReasonUserUnavailable, true},
		{oops.Code(auth.CodeInternal).Errorf("x"), auth.ReasonInternal, false},
		{errors.New("unclassified"), auth.ReasonInternal, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			assert.Equal(t, tt.reason, auth.ReasonOf(tt.err))
			assert.Equal(t, tt.session, auth.IsSessionFailure(tt.err))
			assert.Equal(t, tt.reason == auth.ReasonCredentialsInvalid, auth.IsCredentialsInvalid(tt.err))
		})
	}
}
