package browser

import (
	"fmt"
	"strings"
)

type Strategy string

const (
	CSS   Strategy = "css"
	XPath Strategy = "xpath"
)

// Locator describes how to find an element. ID and class locators are
// normalised to CSS when parsed so backends only deal with two strategies.
type Locator struct {
	Strategy Strategy
	Value    string
}

func ByCSS(sel string) Locator    { return Locator{Strategy: CSS, Value: sel} }
func ByXPath(expr string) Locator { return Locator{Strategy: XPath, Value: expr} }

func ByID(id string) Locator {
	return Locator{Strategy: CSS, Value: fmt.Sprintf(`[id=%q]`, id)}
}

// ByClass matches elements carrying every class in a space separated list,
// e.g. "title main-headline".
func ByClass(classes string) Locator {
	fields := strings.Fields(classes)
	return Locator{Strategy: CSS, Value: "." + strings.Join(fields, ".")}
}

// ParseLocator reads the "strategy:value" form used in config files.
// A value without a known prefix is taken as CSS.
func ParseLocator(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}
	prefix, rest, found := strings.Cut(raw, ":")
	if !found {
		return ByCSS(raw), nil
	}
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(prefix) {
	case "css":
		return ByCSS(rest), nil
	case "xpath":
		return ByXPath(rest), nil
	case "id":
		return ByID(rest), nil
	case "class":
		return ByClass(rest), nil
	}
	// pseudo-classes such as "a:hover" also contain a colon
	return ByCSS(raw), nil
}

func MustParseLocator(raw string) Locator {
	l, err := ParseLocator(raw)
	if err != nil {
		panic(err)
	}
	return l
}

func (l Locator) IsZero() bool {
	return l.Value == ""
}

func (l Locator) String() string {
	return string(l.Strategy) + ":" + l.Value
}

func (l *Locator) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseLocator(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Locator) MarshalYAML() (interface{}, error) {
	return l.String(), nil
}
