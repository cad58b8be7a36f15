package version

import (
	"testing"

	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConfigCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		binaryVersion string
		configVersion string
		expectError   bool
		expectCode    errors.ErrorCode
		errorContains string
	}{
		{
			name:          "exact match",
			binaryVersion: "0.4.0",
			configVersion: "0.4.0",
		},
		{
			name:          "patch differs",
			binaryVersion: "v0.4.3",
			configVersion: "0.4.0",
		},
		{
			name:          "config without version",
			binaryVersion: "0.4.0",
			configVersion: "",
		},
		{
			name:          "development binary",
			binaryVersion: "main",
			configVersion: "9.9.9",
		},
		{
			name:          "development config",
			binaryVersion: "0.4.0",
			configVersion: "main",
		},
		{
			name:          "minor differs",
			binaryVersion: "0.5.0",
			configVersion: "0.4.0",
			expectError:   true,
			expectCode:    errors.ErrCodeVersionMismatch,
			errorContains: "minor version mismatch",
		},
		{
			name:          "major differs",
			binaryVersion: "1.4.0",
			configVersion: "0.4.0",
			expectError:   true,
			expectCode:    errors.ErrCodeVersionMismatch,
			errorContains: "major version mismatch",
		},
		{
			name:          "invalid binary version",
			binaryVersion: "not-a-version",
			configVersion: "0.4.0",
			expectError:   true,
			expectCode:    errors.ErrCodeInvalidVersion,
			errorContains: "invalid binary version",
		},
		{
			name:          "invalid config version",
			binaryVersion: "0.4.0",
			configVersion: "four",
			expectError:   true,
			expectCode:    errors.ErrCodeInvalidVersion,
			errorContains: "invalid config version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConfigCompatibility(tt.binaryVersion, tt.configVersion)

			if !tt.expectError {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.expectCode, errors.GetCode(err))
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
