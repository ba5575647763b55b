package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"linkedin-harvester/internal/browser"
	"linkedin-harvester/internal/schema"
)

// Origin is what is known about a profile besides its page.
type Origin struct {
	URL   string
	Query string
}

// Extract fills every schema field from the overview element. A field whose
// element is not on the page gets its default and the rest of the record is
// unaffected. Any other failure, cancellation included, discards the record.
func Extract(ctx context.Context, overview browser.Element, s schema.Schema, origin Origin) (schema.Record, error) {
	return extract(ctx, overview, s, origin, func(f schema.Field, err error) {
		slog.Warn("field locator not supported by this backend", "field", f.Name, "locator", f.Locator.String(), "err", err)
	})
}

func extract(ctx context.Context, overview browser.Element, s schema.Schema, origin Origin, unsupported func(schema.Field, error)) (schema.Record, error) {
	rec := make(schema.Record, len(s))
	for _, f := range s {
		v, err := fieldValue(ctx, overview, f, origin)
		if errors.Is(err, browser.ErrUnsupportedLocator) {
			unsupported(f, err)
			v, err = f.Default, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		rec[f.Name] = v
	}
	return rec, nil
}

func fieldValue(ctx context.Context, overview browser.Element, f schema.Field, origin Origin) (string, error) {
	switch f.Source {
	case schema.FromURL:
		return origin.URL, nil
	case schema.FromQuery:
		return origin.Query, nil
	case schema.FromURLName:
		if name := guessNameFromURL(origin.URL); name != "" {
			return name, nil
		}
		return f.Default, nil
	}

	el, err := overview.FindElement(ctx, f.Locator)
	if errors.Is(err, browser.ErrNotFound) {
		return f.Default, nil
	}
	if err != nil {
		return "", err
	}
	txt, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	return clean(txt), nil
}
