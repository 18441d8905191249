package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"studentcenter/internal/adapters/ai"
)

// ErrGenerationFailed is returned by generation flows that have no safe fallback.
var ErrGenerationFailed = errors.New("text generation failed, please try again")

// ErrRegionRequired is returned by ExecuteListDistricts for a blank region.
var ErrRegionRequired = errors.New("region is required")

// generateStructured runs one generation call and decodes and validates the result.
// Every failure, whether transport, empty output, malformed JSON or a shape that
// fails validate, is logged and reported as ErrGenerationFailed. Flows with a
// fallback substitute it; the others return the error to the caller.
func generateStructured[T any](ctx context.Context, gen ai.Generator, flow, prompt string, schema any, validate func(*T) error) (T, error) {
	var zero T
	if gen == nil {
		gen = ai.Disabled{}
	}
	rawSchema, err := json.Marshal(schema)
	if err != nil {
		return zero, fmt.Errorf("%s schema: %w", flow, err)
	}

	out, err := func() (T, error) {
		var v T
		raw, err := gen.Generate(ctx, ai.Request{Prompt: prompt, Schema: rawSchema})
		if err != nil {
			return v, err
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, fmt.Errorf("decode: %w", err)
		}
		if validate != nil {
			if err := validate(&v); err != nil {
				return v, fmt.Errorf("validate: %w", err)
			}
		}
		return v, nil
	}()
	if err != nil {
		slog.Warn("ai_event", "event", "generation_failed", "flow", flow, "error", err)
		return zero, fmt.Errorf("%s: %w", flow, ErrGenerationFailed)
	}
	slog.Info("ai_event", "event", "generation_succeeded", "flow", flow)
	return out, nil
}

// JSON schema helpers in the subset the generation API accepts.

func objectSchema(props map[string]any, required ...string) map[string]any {
	return map[string]any{"type": "object", "properties": props, "required": required}
}

func stringSchema() map[string]any { return map[string]any{"type": "string"} }

func arraySchema(items any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

// --- List Districts ---

// ListDistrictsInput carries input for the district listing.
type ListDistrictsInput struct {
	Country string
	Region  string
}

// ListDistrictsDeps holds dependencies for ListDistricts.
type ListDistrictsDeps struct {
	AI ai.Generator
}

type districtList struct {
	Districts []string `json:"districts"`
}

// ExecuteListDistricts asks the generator for the administrative districts of a region.
// Falls back to an empty list when generation fails.
// PRE: Region is non-empty
// POST: returns trimmed, de-duplicated names in generator order
func ExecuteListDistricts(ctx context.Context, input ListDistrictsInput, deps ListDistrictsDeps) ([]string, error) {
	region := strings.TrimSpace(input.Region)
	if region == "" {
		return nil, ErrRegionRequired
	}
	place := region
	if country := strings.TrimSpace(input.Country); country != "" {
		place += ", " + country
	}

	prompt := fmt.Sprintf("Lista los distritos administrativos de %s. Responde solo con los nombres oficiales.", place)
	schema := objectSchema(map[string]any{"districts": arraySchema(stringSchema())}, "districts")
	res, err := generateStructured(ctx, deps.AI, "list_districts", prompt, schema, func(d *districtList) error {
		d.Districts = cleanNames(d.Districts)
		if len(d.Districts) == 0 {
			return errors.New("no districts")
		}
		return nil
	})
	if err != nil {
		return []string{}, nil
	}
	return res.Districts, nil
}

func cleanNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
