package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/titanous/json5"

	"aihub/internal/domain"
)

// errUnknownKey marks a well-formed object that names an undeclared
// parameter. Such input is never handed to the positional repair.
var errUnknownKey = errors.New("undeclared parameter")

// ParseArguments decodes the argument text a model produced for a tool
// call. Strategies are tried in order and the first one yielding an
// object whose keys are all declared wins:
//
//  1. strict JSON
//  2. strict JSON after dropping one trailing `"` or `}` artifact
//  3. lenient JSON5 with markdown code fences removed
//  4. a positional scan that slices the text between declared key names
//
// Blank or empty-object input is accepted only when nothing is required.
func ParseArguments(schema domain.ToolSchema, raw string) (map[string]any, error) {
	declared, required := schema.Declared()

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		return emptyArguments(schema.Name, required)
	}

	args, strictErr := decodeStrict(trimmed, declared)
	if strictErr == nil {
		if len(args) == 0 {
			return emptyArguments(schema.Name, required)
		}
		return args, nil
	}

	if strings.HasSuffix(trimmed, `}"`) || strings.HasSuffix(trimmed, "}}") {
		if args, err := decodeStrict(trimmed[:len(trimmed)-1], declared); err == nil {
			if len(args) == 0 {
				return emptyArguments(schema.Name, required)
			}
			return args, nil
		}
	}

	if args, err := decodeLenient(trimmed, declared); err == nil {
		if len(args) == 0 {
			return emptyArguments(schema.Name, required)
		}
		return args, nil
	}

	if !errors.Is(strictErr, errUnknownKey) {
		args, err := scanPositional(trimmed, declared, required)
		if err == nil {
			return args, nil
		}
		if errors.Is(err, domain.ErrParameterNotFound) {
			return nil, err
		}
	}

	return nil, &domain.JSONDecodeError{Raw: raw, Offset: syntaxOffset(strictErr), Err: strictErr}
}

// emptyArguments accepts an argument-less call only when nothing is required.
func emptyArguments(tool string, required []string) (map[string]any, error) {
	if len(required) > 0 {
		return nil, domain.NewSubSystemError("tool", "ParseArguments", domain.ErrArgumentsRequired,
			fmt.Sprintf("%s requires %s", tool, strings.Join(required, ", ")))
	}
	return map[string]any{}, nil
}

func decodeStrict(s string, declared map[string]bool) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, err
	}
	return args, checkDeclared(args, declared)
}

func decodeLenient(s string, declared map[string]bool) (map[string]any, error) {
	s = stripCodeFence(s)
	var args map[string]any
	if err := json5.Unmarshal([]byte(s), &args); err != nil {
		return nil, err
	}
	if args == nil {
		return nil, errors.New("not an object")
	}
	return args, checkDeclared(args, declared)
}

func checkDeclared(args map[string]any, declared map[string]bool) error {
	if args == nil {
		return errors.New("not an object")
	}
	for k := range args {
		if !declared[k] {
			return fmt.Errorf("%w %q", errUnknownKey, k)
		}
	}
	return nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

type keyHit struct {
	name       string
	start, end int
}

// scanPositional locates each declared key in the raw text and treats
// everything up to the next located key as its value. It tolerates
// unescaped quotes inside string values.
func scanPositional(s string, declared map[string]bool, required []string) (map[string]any, error) {
	var hits []keyHit
	for name := range declared {
		re := regexp.MustCompile(`"` + regexp.QuoteMeta(name) + `"\s*:`)
		if loc := re.FindStringIndex(s); loc != nil {
			hits = append(hits, keyHit{name: name, start: loc[0], end: loc[1]})
		}
	}
	for _, name := range required {
		found := false
		for _, h := range hits {
			if h.name == name {
				found = true
				break
			}
		}
		if !found {
			return nil, domain.NewSubSystemError("tool", "ParseArguments", domain.ErrParameterNotFound, name)
		}
	}
	if len(hits) == 0 {
		return nil, errors.New("no declared parameter located")
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	args := make(map[string]any, len(hits))
	for i, h := range hits {
		last := i == len(hits)-1
		var v string
		if last {
			v = s[h.end:]
		} else {
			v = s[h.end:hits[i+1].start]
		}
		args[h.name] = positionalValue(v, last)
	}
	return args, nil
}

func positionalValue(v string, last bool) any {
	v = strings.TrimSpace(v)
	if last {
		if strings.HasSuffix(v, `}"`) || strings.HasSuffix(v, "}}") {
			v = v[:len(v)-1]
		}
		v = strings.TrimSpace(strings.TrimSuffix(v, "}"))
	} else {
		v = strings.TrimSpace(strings.TrimSuffix(v, ","))
	}

	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(v), &unquoted); err == nil {
			return unquoted
		}
		return v[1 : len(v)-1]
	}

	var scalar any
	if err := json.Unmarshal([]byte(v), &scalar); err == nil {
		return scalar
	}
	return v
}

func syntaxOffset(err error) int64 {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return se.Offset
	}
	return 0
}
