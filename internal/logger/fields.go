package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldOrganization is the structured log field key for the organization identifier.
	FieldOrganization = "org_id"
	// FieldBatch is the structured log field key for a ranking batch identifier.
	FieldBatch = "batch_id"
	// FieldProvider is the structured log field key for the semantic provider name.
	FieldProvider = "semantic_provider"
	// FieldModel is the structured log field key for the semantic model identifier.
	FieldModel = "semantic_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the provided fields to the logger.
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// BatchFields returns the fields describing one ranking batch.
// Empty values are skipped.
func BatchFields(orgID, batchID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldOrganization, Value: orgID},
		StringField{Key: FieldBatch, Value: batchID},
	)
}

// WithBatch attaches the batch fields to the provided logger.
func WithBatch(logger *zap.Logger, orgID, batchID string) *zap.Logger {
	return WithFields(logger, BatchFields(orgID, batchID)...)
}

// ProviderFields returns standard fields that describe a semantic provider and model.
func ProviderFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithProvider attaches the provider fields to the provided logger.
func WithProvider(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, ProviderFields(provider, model)...)
}
