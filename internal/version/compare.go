package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
)

// CheckConfigCompatibility checks that a configuration file written for
// configVersion can be loaded by a binary at binaryVersion.
//
// Rules:
//   - an empty config version is accepted (files written before versioning)
//   - "main" on either side skips the check
//   - major and minor must match, patch may differ
func CheckConfigCompatibility(binaryVersion, configVersion string) error {
	binaryVersion = strings.TrimPrefix(strings.TrimSpace(binaryVersion), "v")
	configVersion = strings.TrimPrefix(strings.TrimSpace(configVersion), "v")

	if configVersion == "" {
		return nil
	}

	if binaryVersion == "main" || configVersion == "main" {
		return nil
	}

	binarySemver, err := semver.NewVersion(binaryVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid binary version '%s'", binaryVersion)
	}

	configSemver, err := semver.NewVersion(configVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid config version '%s'", configVersion)
	}

	if binarySemver.Major() != configSemver.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch,
			"major version mismatch: binary is %d.x.x but config targets %d.x.x",
			binarySemver.Major(), configSemver.Major())
	}

	if binarySemver.Minor() != configSemver.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch,
			"minor version mismatch: binary is %d.%d.x but config targets %d.%d.x",
			binarySemver.Major(), binarySemver.Minor(),
			configSemver.Major(), configSemver.Minor())
	}

	return nil
}
