package policy

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

var sentenceSplit = regexp.MustCompile(`[.!?]+\s+`)

// schemaCompiler compiles each lane's JSON schema once and caches the
// result, since compilation is the expensive part of validate()'s
// bracketed-JSON check and lane schemas never change at runtime.
var (
	schemaCompiler  = jsonschema.NewCompiler()
	compiledSchemas sync.Map // models.Lane -> *jsonschema.Schema
)

func compiledSchemaFor(lane models.Lane, spec laneSpec) (*jsonschema.Schema, error) {
	if cached, ok := compiledSchemas.Load(lane); ok {
		return cached.(*jsonschema.Schema), nil
	}
	raw, err := json.Marshal(spec.schema)
	if err != nil {
		return nil, err
	}
	compiled, err := schemaCompiler.Compile(raw)
	if err != nil {
		return nil, err
	}
	compiledSchemas.Store(lane, compiled)
	return compiled, nil
}

// looksLikeJSONObject reports whether text is bracketed {...} JSON.
func looksLikeJSONObject(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
}

func schemaToValidator(s map[string]interface{}) models.Validator {
	return models.Validator{Type: "schema", Schema: s, Description: "response must satisfy the lane's JSON schema"}
}

func patternToValidator(r filterRule) models.Validator {
	return models.Validator{Type: "pattern", Pattern: r.pattern, Description: r.issue}
}

// Apply builds the final system prompt for lane by substituting the
// affect/drive placeholders into the lane's template. It returns the
// assembled prompt and the validator set rather than mutating anything in
// place.
func Apply(req models.PolicyApplyRequest) models.PolicyApplyResponse {
	spec, _ := laneOrDefault(req.Lane)

	schemaJSON := schemaPreview(spec.schema)
	prompt := spec.template
	prompt = strings.ReplaceAll(prompt, "{schema}", schemaJSON)
	prompt = strings.ReplaceAll(prompt, "{emotion}", orDefault(req.Affect.Emotion, "neutral"))
	prompt = strings.ReplaceAll(prompt, "{intensity}", strconv.FormatFloat(req.Affect.Intensity, 'f', 2, 64))
	prompt = strings.ReplaceAll(prompt, "{energy}", strconv.FormatFloat(req.Drive.Energy, 'f', 2, 64))
	prompt = strings.ReplaceAll(prompt, "{focus}", strconv.FormatFloat(req.Drive.Focus, 'f', 2, 64))

	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}

	validators := []models.Validator{schemaToValidator(spec.schema)}
	for _, f := range spec.filters {
		if f.kind == filterRegex {
			validators = append(validators, patternToValidator(f))
		}
	}

	return models.PolicyApplyResponse{
		SystemFinal: prompt,
		Validators:  validators,
	}
}

func schemaPreview(schema map[string]interface{}) string {
	props, _ := schema["properties"].(map[string]interface{})
	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	return fmt.Sprintf("JSON object with fields: %s", strings.Join(names, ", "))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Validate runs lane's filter list plus its length bound against text,
// returning every issue found and, when any are found, a best-effort
// auto-repaired version of text.
func Validate(req models.PolicyValidateRequest) models.PolicyValidateResponse {
	spec, lane := laneOrDefault(req.Lane)
	text := req.Text

	var repairs []models.Repair
	repaired := text

	if looksLikeJSONObject(text) {
		var instance interface{}
		if err := json.Unmarshal([]byte(text), &instance); err == nil {
			if compiled, err := compiledSchemaFor(lane, spec); err == nil {
				if result := compiled.Validate(instance); !result.IsValid() {
					repairs = append(repairs, models.Repair{
						Type:     "schema",
						Issue:    "Response JSON does not satisfy the lane's schema",
						Repair:   repairTable["schema"],
						Severity: severityFor("schema"),
					})
				}
			}
		}
	}

	for _, f := range spec.filters {
		switch f.kind {
		case filterRegex:
			re := regexp.MustCompile(f.pattern)
			if re.MatchString(text) {
				repairs = append(repairs, models.Repair{
					Type:     "filter",
					Issue:    f.issue,
					Repair:   repairTable[f.category],
					Severity: severityFor(f.category),
				})
				repaired = re.ReplaceAllString(repaired, "")
			}
		case filterMaxSentences:
			sentences := sentenceSplit.Split(strings.TrimSpace(text), -1)
			if len(sentences) > f.bound {
				repairs = append(repairs, models.Repair{
					Type:     "filter",
					Issue:    f.issue,
					Repair:   repairTable[f.category],
					Severity: severityFor(f.category),
				})
				repaired = strings.Join(sentences[:f.bound], ". ") + "."
			}
		case filterMaxChars:
			if len(text) > f.bound {
				repairs = append(repairs, models.Repair{
					Type:     "filter",
					Issue:    f.issue,
					Repair:   repairTable[f.category],
					Severity: severityFor(f.category),
				})
				repaired = repaired[:f.bound]
			}
		}
	}

	if spec.maxLength > 0 && len(text) > spec.maxLength {
		repairs = append(repairs, models.Repair{
			Type:     "max_length",
			Issue:    "Response exceeds the lane's maximum length",
			Repair:   repairTable["length"],
			Severity: severityFor("length"),
		})
		if len(repaired) > spec.maxLength {
			repaired = repaired[:spec.maxLength]
		}
	}

	resp := models.PolicyValidateResponse{
		OK:      len(repairs) == 0,
		Repairs: repairs,
	}
	if len(repairs) > 0 {
		resp.Repaired = strings.TrimSpace(repaired)
	}
	return resp
}
