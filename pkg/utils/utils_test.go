package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

type UtilsTestSuite struct {
	suite.Suite
}

func TestUtilsSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

type sampleConfig struct {
	Pairs  []string `json:"pairs" jsonschema:"description=Books to trade"`
	Amount float64  `json:"amount" jsonschema:"description=Currency per trade"`
	DryRun bool     `json:"dry_run"`
	Nested struct {
		Key string `json:"key"`
	} `json:"nested"`
}

func (suite *UtilsTestSuite) TestGetSchemaFromConfig() {
	schema, err := GetSchemaFromConfig(sampleConfig{})
	suite.Require().NoError(err)

	var result map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(schema), &result))

	properties, ok := result["properties"].(map[string]any)
	suite.Require().True(ok)
	suite.Contains(properties, "pairs")
	suite.Contains(properties, "amount")
	suite.Contains(properties, "nested")
}

func (suite *UtilsTestSuite) TestGetSchemaFromConfigPointer() {
	schema, err := GetSchemaFromConfig(&sampleConfig{})
	suite.NoError(err)
	suite.NotEmpty(schema)
}

func (suite *UtilsTestSuite) TestRoundToDecimalPrecision() {
	tests := []struct {
		name      string
		quantity  float64
		precision int
		expected  float64
	}{
		{"truncates down", 0.0199999, 4, 0.0199},
		{"exact value", 1.25, 2, 1.25},
		{"zero precision", 3.99, 0, 3},
		{"zero quantity", 0, 6, 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.InDelta(tc.expected, RoundToDecimalPrecision(tc.quantity, tc.precision), 1e-12)
		})
	}
}

func (suite *UtilsTestSuite) TestMean() {
	suite.Equal(0.0, Mean(nil))
	suite.InDelta(2.5, Mean([]float64{1, 2, 3, 4}), 1e-12)
}
