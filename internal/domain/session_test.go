package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSessionID(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		want        string
		wantDefault bool
		wantErr     bool
	}{
		{name: "empty falls back to default", in: "", want: DefaultSessionID, wantDefault: true},
		{name: "plain id", in: "nda-2024", want: "nda-2024"},
		{name: "uuid", in: "3f1c2d9e-8a1b-4c7d-9e2f-0a1b2c3d4e5f", want: "3f1c2d9e-8a1b-4c7d-9e2f-0a1b2c3d4e5f"},
		{name: "parent traversal", in: "../etc", wantErr: true},
		{name: "slash", in: "a/b", wantErr: true},
		{name: "leading dot", in: ".hidden", wantErr: true},
		{name: "too long", in: "a1234567890123456789012345678901234567890123456789012345678901234", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, usedDefault, err := ResolveSessionID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidSessionID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantDefault, usedDefault)
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ClauseError{Index: 3, Err: &ClassificationError{Err: cause}}

	var ce *ClassificationError
	assert.True(t, errors.As(err, &ce))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "clause 3")

	build := &IndexBuildError{SessionID: "s1", Err: cause}
	assert.Contains(t, build.Error(), `"s1"`)
	assert.True(t, errors.Is(build, cause))
}
