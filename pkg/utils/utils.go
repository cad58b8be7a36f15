package utils

import (
	"encoding/json"
	"math"

	"github.com/invopop/jsonschema"
)

// GetSchemaFromConfig reflects a JSON schema document from a config value.
func GetSchemaFromConfig(config any) (string, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(config)

	jsonSchemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}

// RoundToDecimalPrecision truncates the quantity to the given number of decimals.
// Truncation keeps an order from exceeding the available balance.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	multiplier := math.Pow10(decimalPrecision)

	return math.Floor(quantity*multiplier) / multiplier
}

// Mean returns the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
