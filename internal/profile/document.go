package profile

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/mitchellh/mapstructure"
)

// FromDocument decodes the loosely typed profile document kept by profile
// stores into the strict record. Keys may be snake_case or camelCase, numbers
// may arrive as formatted strings ("$100,000", "20%") and lists as
// comma-separated strings. The result is normalized and validated.
func FromDocument(doc map[string]any) (*OrganizationProfile, error) {
	if doc == nil {
		return nil, fmt.Errorf("profile document is empty")
	}

	var p OrganizationProfile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			numericStringHook,
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           &p,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("create profile decoder: %w", err)
	}

	if err := decoder.Decode(cleanDocument(doc)); err != nil {
		return nil, fmt.Errorf("decode profile document: %w", err)
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// numericStringHook turns formatted numeric strings into numbers for
// integer and float targets.
func numericStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}

	switch to.Kind() {
	case reflect.Int, reflect.Int64, reflect.Float64:
	default:
		return data, nil
	}

	raw := strings.NewReplacer("$", "", ",", "", "%", "", " ", "", "USD", "", "usd", "").Replace(data.(string))
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", data, err)
	}

	if to.Kind() == reflect.Float64 {
		return value, nil
	}
	return int64(math.Round(value)), nil
}

// cleanDocument rewrites keys to snake_case and drops blank string values,
// so an empty field means absent rather than zero.
func cleanDocument(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
		case map[string]any:
			value = cleanDocument(v)
		case []any:
			items := make([]any, 0, len(v))
			for _, item := range v {
				if nested, ok := item.(map[string]any); ok {
					item = cleanDocument(nested)
				}
				items = append(items, item)
			}
			value = items
		case nil:
			continue
		}
		out[snakeCase(key)] = value
	}
	return out
}

func snakeCase(key string) string {
	var b strings.Builder
	var prev rune
	for _, r := range strings.TrimSpace(key) {
		switch {
		case r == '-' || r == ' ':
			b.WriteRune('_')
		case unicode.IsUpper(r):
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}
