package notifications

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/osteele/liquid"
)

// TemplateRenderer renders Content(Template) bindings through Liquid,
// adapted from the teacher's internal/mailing.TemplateService: same
// cached-parse-then-render shape and custom filter set, reused verbatim
// where domain-appropriate (default, truncate, urlencode, relative_time).
type TemplateRenderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]liquid.Template
}

// NewTemplateRenderer builds a renderer with the notification filter set
// registered.
func NewTemplateRenderer() *TemplateRenderer {
	r := &TemplateRenderer{engine: liquid.NewEngine()}
	r.registerFilters()
	return r
}

func (r *TemplateRenderer) registerFilters() {
	r.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	r.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})

	r.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	r.engine.RegisterFilter("relative_time", func(t interface{}) string {
		ts, ok := asTime(t)
		if !ok {
			return fmt.Sprintf("%v", t)
		}
		return relativeTime(time.Since(ts))
	})
}

// Render parses (or reuses a cached parse of) src and renders it against
// bindings. An empty src renders to an empty string without invoking the
// engine, so Content values that never set a field (e.g. no HTML
// alternative) don't need a guard at the call site.
func (r *TemplateRenderer) Render(src string, bindings map[string]any) (string, error) {
	if src == "" {
		return "", nil
	}

	var tpl *liquid.Template
	if cached, ok := r.cache.Load(src); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := r.engine.ParseString(src)
		if err != nil {
			return "", err
		}
		tpl = parsed
		r.cache.Store(src, tpl)
	}

	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", err
	}
	return out, nil
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func relativeTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
