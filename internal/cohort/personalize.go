package cohort

import (
	"sort"
	"strconv"
	"strings"
)

// PersonalData carries the per-user values re-injected into a shared template.
type PersonalData struct {
	Name         string
	UserName     string
	Age          int
	BirthDate    string
	Person1Name  string
	Person2Name  string
	Question     string
	DreamContent string
	ExName       string

	// Extra adds {{key}} placeholders. Built-in placeholders win on a name clash.
	Extra map[string]string
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Placeholders returns every placeholder with its substituted value, defaults applied.
func (p PersonalData) Placeholders() map[string]string {
	userName := orDefault(p.Name, orDefault(p.UserName, "회원님"))

	age := "20"
	if p.Age > 0 {
		age = strconv.Itoa(p.Age)
	}

	out := make(map[string]string, 8+len(p.Extra))
	for k, v := range p.Extra {
		out["{{"+k+"}}"] = v
	}

	out["{{userName}}"] = userName
	out["{{age}}"] = age
	out["{{birthYear}}"] = strconv.Itoa(BirthYear(p.BirthDate))
	out["{{person1_name}}"] = orDefault(p.Person1Name, "본인")
	out["{{person2_name}}"] = orDefault(p.Person2Name, "상대방")
	out["{{question}}"] = p.Question
	out["{{dreamContent}}"] = p.DreamContent
	out["{{exName}}"] = orDefault(p.ExName, "그분")
	return out
}

func (p PersonalData) replacer() *strings.Replacer {
	ph := p.Placeholders()
	keys := make([]string, 0, len(ph))
	for k := range ph {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, ph[k])
	}
	return strings.NewReplacer(pairs...)
}

// Personalize returns a deep copy of template with placeholders substituted in
// string values. Keys, numbers and booleans are copied unchanged, and text that
// came from a substitution is never scanned again.
func Personalize(template map[string]any, p PersonalData) map[string]any {
	if template == nil {
		return nil
	}
	r := p.replacer()
	return personalizeMap(template, r)
}

func personalizeMap(m map[string]any, r *strings.Replacer) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = personalizeValue(v, r)
	}
	return out
}

func personalizeValue(v any, r *strings.Replacer) any {
	switch t := v.(type) {
	case string:
		if !strings.Contains(t, "{{") {
			return t
		}
		return r.Replace(t)
	case map[string]any:
		return personalizeMap(t, r)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = personalizeValue(e, r)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = r.Replace(e)
		}
		return out
	default:
		return v
	}
}
